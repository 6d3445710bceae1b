package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"vapor_recovery/internal/models"
	"vapor_recovery/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	genTokenToken string
	genTokenErr   error
	parseSubject  string
	parseErr      error

	lastGenUsername string
	lastGenPassword string
	lastParseToken  string
}

func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (string, error) {
	m.lastParseToken = token
	return m.parseSubject, m.parseErr
}

type mockControl struct {
	startStatus models.CycleStatus
	startErr    error
	stopErr     error
	pauseErr    error
	resumeErr   error
	lockoutErr  error
	status      models.CycleStatus
	catalog     []models.CycleSequence
	locked      bool

	lastStart  service.StartRequest
	stopCalls  int
	calCalls   int
	fastPoll   []bool
	failsafe   []bool
	lockoutSet []bool
	linkSet    []bool
	suspended  bool
}

func (m *mockControl) StartCycle(_ context.Context, req service.StartRequest) (models.CycleStatus, error) {
	m.lastStart = req
	return m.startStatus, m.startErr
}
func (m *mockControl) StopCycle(context.Context) error {
	m.stopCalls++
	return m.stopErr
}
func (m *mockControl) PauseCycle(context.Context) (models.PausedCycle, error) {
	return models.PausedCycle{Sequence: models.CycleSequence{Name: m.status.Name}}, m.pauseErr
}
func (m *mockControl) ResumeCycle(context.Context) (models.CycleStatus, error) {
	return m.status, m.resumeErr
}
func (m *mockControl) CycleStatus() models.CycleStatus        { return m.status }
func (m *mockControl) Cycles() []models.CycleSequence         { return m.catalog }
func (m *mockControl) Locked() bool                           { return m.locked }
func (m *mockControl) Calibrate(context.Context)              { m.calCalls++ }
func (m *mockControl) SetFastPoll(_ context.Context, on bool) { m.fastPoll = append(m.fastPoll, on) }
func (m *mockControl) SetFailsafe(_ context.Context, on bool) { m.failsafe = append(m.failsafe, on) }
func (m *mockControl) LinkSuspended() bool                    { return m.suspended }
func (m *mockControl) SetLinkSuspended(_ context.Context, on bool) {
	m.linkSet = append(m.linkSet, on)
	m.suspended = on
}
func (m *mockControl) SetLockout(_ context.Context, on bool) error {
	m.lockoutSet = append(m.lockoutSet, on)
	if m.lockoutErr == nil {
		m.locked = on
	}
	return m.lockoutErr
}

type mockMonitoring struct {
	mode       models.ModeStatus
	snap       models.SensorSnapshot
	ext        models.ExtendedStatus
	alarms     []models.Alarm
	ackErr     error
	timers     []models.ShutdownTimer
	profile    service.Profile
	setErr     error
	cal        *models.Calibration
	calErr     error
	samples    []models.Sample
	samplesErr error

	lastAck     models.AlarmKind
	lastProfile string
	lastSamples service.SampleFilter
}

func (m *mockMonitoring) Mode() models.ModeStatus                { return m.mode }
func (m *mockMonitoring) Snapshot() models.SensorSnapshot        { return m.snap }
func (m *mockMonitoring) Extended() models.ExtendedStatus        { return m.ext }
func (m *mockMonitoring) Alarms() []models.Alarm                 { return m.alarms }
func (m *mockMonitoring) ShutdownTimers() []models.ShutdownTimer { return m.timers }
func (m *mockMonitoring) Profile() service.Profile               { return m.profile }
func (m *mockMonitoring) ActiveAlarms() []models.Alarm {
	var out []models.Alarm
	for _, a := range m.alarms {
		if a.State == models.AlarmActive {
			out = append(out, a)
		}
	}
	return out
}
func (m *mockMonitoring) AcknowledgeAlarm(kind models.AlarmKind) error {
	m.lastAck = kind
	return m.ackErr
}
func (m *mockMonitoring) SetProfile(name string) (service.Profile, error) {
	m.lastProfile = name
	if m.setErr != nil {
		return service.Profile{}, m.setErr
	}
	m.profile = service.Profile{Name: strings.ToUpper(name)}
	return m.profile, nil
}
func (m *mockMonitoring) LatestCalibration(context.Context) (*models.Calibration, error) {
	return m.cal, m.calErr
}
func (m *mockMonitoring) Samples(_ context.Context, f service.SampleFilter) ([]models.Sample, error) {
	m.lastSamples = f
	return m.samples, m.samplesErr
}

type mockEventLog struct {
	resp      []models.Event
	err       error
	lastFrom  time.Time
	lastTo    time.Time
	lastType  string
	lastLimit int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastLimit = f.Limit
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, true)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

// newAPIService returns a Service whose token check always passes.
func newAPIService(ctl *mockControl, mon *mockMonitoring) *service.Service {
	return &service.Service{
		Authorization: &mockAuth{parseSubject: "operator"},
		Control:       ctl,
		Monitoring:    mon,
		EventLog:      &mockEventLog{},
	}
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// do sends an authorized request and returns the recorder.
func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func httpNoAuth(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}
