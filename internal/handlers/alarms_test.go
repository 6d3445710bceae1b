package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"vapor_recovery/internal/errs"
	"vapor_recovery/internal/models"
)

func TestAlarmHandlers_List(t *testing.T) {
	mon := &mockMonitoring{alarms: []models.Alarm{
		{Kind: models.AlarmOverPressure, State: models.AlarmActive},
		{Kind: models.AlarmOverfill, State: models.AlarmIdle},
		{Kind: models.AlarmLowCurrent, State: models.AlarmConfirming},
	}}
	r := newTestRouter(newAPIService(&mockControl{}, mon))

	var out struct {
		Count  int            `json:"count"`
		Alarms []models.Alarm `json:"alarms"`
	}
	w := do(r, http.MethodGet, "/api/v1/alarms", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 3 {
		t.Fatalf("count=%d", out.Count)
	}

	w = do(r, http.MethodGet, "/api/v1/alarms?active=true", "")
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 1 || out.Alarms[0].Kind != models.AlarmOverPressure {
		t.Fatalf("active = %+v", out)
	}
}

func TestAlarmHandlers_Ack(t *testing.T) {
	mon := &mockMonitoring{}
	r := newTestRouter(newAPIService(&mockControl{}, mon))

	w := do(r, http.MethodPost, "/api/v1/alarms/over_pressure/ack", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if mon.lastAck != models.AlarmOverPressure {
		t.Fatalf("acked %q", mon.lastAck)
	}

	mon.ackErr = errs.ErrUnknownAlarm
	if w := do(r, http.MethodPost, "/api/v1/alarms/bogus/ack", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown kind: %d", w.Code)
	}
	mon.ackErr = errs.ErrAlarmNotActive
	if w := do(r, http.MethodPost, "/api/v1/alarms/overfill/ack", ""); w.Code != http.StatusConflict {
		t.Fatalf("inactive alarm: %d", w.Code)
	}
}

func TestAlarmHandlers_ShutdownTimers(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mon := &mockMonitoring{timers: []models.ShutdownTimer{{Category: models.AlarmOverPressure, Onset: since}}}
	r := newTestRouter(newAPIService(&mockControl{}, mon))

	w := do(r, http.MethodGet, "/api/v1/shutdown", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var timers []models.ShutdownTimer
	if err := json.Unmarshal(w.Body.Bytes(), &timers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(timers) != 1 || !timers[0].Onset.Equal(since) {
		t.Fatalf("timers = %+v", timers)
	}
}
