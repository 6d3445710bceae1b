package errs

import "errors"

var (
	ErrAlreadyRunning    = errors.New("cycle already running")
	ErrNoExecution       = errors.New("no active cycle execution")
	ErrUnknownCycle      = errors.New("unknown cycle")
	ErrNothingToResume   = errors.New("no paused cycle to resume")
	ErrUnknownAlarm      = errors.New("unknown alarm kind")
	ErrAlarmNotActive    = errors.New("alarm is not active")
	ErrInvalidTimeRange  = errors.New("invalid time range: from must be <= to")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrInvalidToken      = errors.New("invalid token")
	ErrLocked            = errors.New("local control is locked out")
	ErrUnknownProfile    = errors.New("unknown profile")
	ErrShutdown          = errors.New("compressor is shut down")
)
