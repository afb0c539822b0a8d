package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesBaseAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:       "debug",
		ServiceName: "parcelrate",
		Environment: "test",
		Version:     "1.2.3",
		Output:      &buf,
	})

	Component(logger, "shipments").Debug("created", "id", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "parcelrate", rec["service"])
	assert.Equal(t, "test", rec["environment"])
	assert.Equal(t, "1.2.3", rec["version"])
	assert.Equal(t, "shipments", rec["component"])
	assert.Equal(t, "created", rec["msg"])
	assert.EqualValues(t, 7, rec["id"])
	assert.Contains(t, rec["time"], "Z")
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Output: &buf})

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseLevel(raw), raw)
	}
}
