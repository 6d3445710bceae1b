package transport

import (
	"testing"
	"time"

	"vapor_recovery/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine_Classification(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		line string
		want MessageKind
	}{
		{"status", `{"pressure":0.1,"current":3,"overfill":1,"sdcard":"FAULT","relayMode":2}`, KindStatus},
		{"calibration", `{"type":"data","ps_cal":0.01}`, KindCalibration},
		{"remote", `{"command":"stop_cycle"}`, KindRemote},
		{"backfill", `{"backfill":[]}`, KindBackfill},
		{"extended", `{"lte":true,"carrier":"acme"}`, KindExtended},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseLine([]byte(tt.line), now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Kind)
		})
	}
}

func TestParseLine_StatusFields(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg, err := ParseLine([]byte(`  {"pressure":-0.5,"current":7.5,"overfill":1,"sdcard":"FAULT","relayMode":9,"failsafe":1,"shutdown":1}  `), now)
	require.NoError(t, err)

	assert.Equal(t, models.SensorSnapshot{
		Pressure:   -0.5,
		Current:    7.5,
		Overfill:   true,
		SDCard:     "FAULT",
		RelayMode:  9,
		Failsafe:   true,
		Shutdown:   true,
		ReceivedAt: now,
	}, msg.Status)
}

func TestParseLine_Rejects(t *testing.T) {
	for _, line := range []string{
		"",
		"hello",
		`{"pressure":0.1`,
		`{"pressure":0.1}`,
		`{"current":2}`,
		`{"command":""}`,
		`{"unknown":1}`,
		`{"backfill":"nope"}`,
		`{"backfill":[{"timestamp":"yesterday"}]}`,
	} {
		_, err := ParseLine([]byte(line), time.Now())
		assert.Error(t, err, "line %q", line)
	}
}

func TestFlexTime(t *testing.T) {
	var ft flexTime
	require.NoError(t, ft.UnmarshalJSON([]byte(`1700000000.5`)))
	assert.Equal(t, int64(1700000000), ft.Unix())
	assert.Equal(t, 500*time.Millisecond, time.Duration(ft.Nanosecond()))

	require.NoError(t, ft.UnmarshalJSON([]byte(`"2024-01-02 03:04:05"`)))
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ft.Time)
}

func TestEncodeMode_EveryModeMapsToOneCode(t *testing.T) {
	want := map[models.Mode]string{
		models.ModeRest:  `{"type":"data","mode":0}`,
		models.ModeRun:   `{"type":"data","mode":1}`,
		models.ModePurge: `{"type":"data","mode":2}`,
		models.ModeBurp:  `{"type":"data","mode":3}`,
		models.ModeBleed: `{"type":"data","mode":8}`,
		models.ModeLeak:  `{"type":"data","mode":9}`,
	}
	for _, m := range models.AllModes {
		assert.Equal(t, want[m]+"\n", string(EncodeMode(m)), "mode %s", m)
	}
	assert.Equal(t, want[models.ModeRest]+"\n", string(EncodeMode(models.Mode("bogus"))))
}

func TestEncodeShutdownRelay(t *testing.T) {
	assert.Equal(t, "{\"type\":\"data\",\"mode\":\"shutdown\"}\n", string(EncodeShutdownRelay(true)))
	assert.Equal(t, "{\"type\":\"data\",\"mode\":\"normal\"}\n", string(EncodeShutdownRelay(false)))
}
