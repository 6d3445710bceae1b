package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"vapor_recovery/internal/errs"
	"vapor_recovery/internal/models"
)

func TestCycleHandlers_Start(t *testing.T) {
	ctl := &mockControl{startStatus: models.CycleStatus{Name: "standard", Running: true, StepCount: 15}}
	r := newTestRouter(newAPIService(ctl, &mockMonitoring{}))

	w := do(r, http.MethodPost, "/api/v1/cycles/start", `{"name":"standard"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var st models.CycleStatus
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if !st.Running || st.StepCount != 15 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if ctl.lastStart.Name != "standard" || ctl.lastStart.Origin != models.OriginOperator || ctl.lastStart.Bypass {
		t.Fatalf("request = %+v", ctl.lastStart)
	}

	if w := do(r, http.MethodPost, "/api/v1/cycles/start", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing name: got %d", w.Code)
	}
}

func TestCycleHandlers_StartErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("StartCycle standard: %w", errs.ErrAlreadyRunning), http.StatusConflict},
		{errs.ErrLocked, http.StatusConflict},
		{fmt.Errorf("StartCycle standard: %w", errs.ErrShutdown), http.StatusConflict},
		{fmt.Errorf("Get %q: %w", "x", errs.ErrUnknownCycle), http.StatusNotFound},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r := newTestRouter(newAPIService(&mockControl{startErr: tc.err}, &mockMonitoring{}))
			w := do(r, http.MethodPost, "/api/v1/cycles/start", `{"name":"standard"}`)
			if w.Code != tc.code {
				t.Fatalf("got %d, want %d", w.Code, tc.code)
			}
			if tc.code == http.StatusInternalServerError {
				var out map[string]string
				_ = json.Unmarshal(w.Body.Bytes(), &out)
				if out["error"] != "failed to start cycle" {
					t.Fatalf("internal errors must not leak: %q", out["error"])
				}
			}
		})
	}
}

func TestCycleHandlers_StopPauseResumeStatus(t *testing.T) {
	ctl := &mockControl{
		status:  models.CycleStatus{Name: "leak_test", Running: true},
		catalog: []models.CycleSequence{{Name: "leak_test"}, {Name: "standard"}},
	}
	r := newTestRouter(newAPIService(ctl, &mockMonitoring{}))

	if w := do(r, http.MethodPost, "/api/v1/cycles/stop", ""); w.Code != http.StatusOK || ctl.stopCalls != 1 {
		t.Fatalf("stop: %d calls=%d", w.Code, ctl.stopCalls)
	}
	if w := do(r, http.MethodPost, "/api/v1/cycles/pause", ""); w.Code != http.StatusOK {
		t.Fatalf("pause: %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/v1/cycles/resume", ""); w.Code != http.StatusOK {
		t.Fatalf("resume: %d", w.Code)
	}
	w := do(r, http.MethodGet, "/api/v1/cycles/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	w = do(r, http.MethodGet, "/api/v1/cycles", "")
	var seqs []models.CycleSequence
	_ = json.Unmarshal(w.Body.Bytes(), &seqs)
	if len(seqs) != 2 {
		t.Fatalf("catalog = %+v", seqs)
	}

	ctl.pauseErr = errs.ErrNoExecution
	ctl.resumeErr = errs.ErrNothingToResume
	if w := do(r, http.MethodPost, "/api/v1/cycles/pause", ""); w.Code != http.StatusNotFound {
		t.Fatalf("pause idle: %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/v1/cycles/resume", ""); w.Code != http.StatusNotFound {
		t.Fatalf("resume nothing: %d", w.Code)
	}
}

func TestCycleHandlers_RequireToken(t *testing.T) {
	r := newTestRouter(newAPIService(&mockControl{}, &mockMonitoring{}))
	w := httpNoAuth(r, http.MethodPost, "/api/v1/cycles/stop")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
