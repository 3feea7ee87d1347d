package log

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level Level) (*DefaultLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: level, Stdout: &buf, Stderr: &buf})
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l, &buf
}

func TestLoggerFiltersByLevel(t *testing.T) {
	l, buf := newTestLogger(WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("round limit reached", "rounds", 3)

	assert.Equal(t, "[2026-01-02 03:04:05] WARN: round limit reached rounds=3\n", buf.String())

	buf.Reset()
	l.SetLevel(DebugLevel)
	l.Debug("parsed inputs", "files", 2)
	assert.Contains(t, buf.String(), "DEBUG: parsed inputs files=2")
}

func TestLoggerJSON(t *testing.T) {
	l, buf := newTestLogger(InfoLevel)
	l.SetJSONOutput(true)
	l.Info("wrote file", "path", "out/a.dp.cpp", "bytes", 12)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "wrote file", entry["message"])
	assert.Equal(t, "out/a.dp.cpp", entry["path"])
	assert.Equal(t, float64(12), entry["bytes"])
}

func TestFormatMessageOddArgs(t *testing.T) {
	assert.Equal(t, "msg arg=x k=v", formatMessage("msg", "x", "k", "v"))
	assert.Equal(t, "msg", formatMessage("msg"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpinnerOnBufferIsSilent(t *testing.T) {
	var buf bytes.Buffer
	s := NewProgressSpinnerTo(&buf, "migrating")
	s.Start()
	s.Message("writing")
	s.Stop()
	s.Stop()
	assert.Empty(t, buf.String())
}
