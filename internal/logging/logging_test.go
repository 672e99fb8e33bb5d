package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "json", &buf)

	logger.Debug("hidden")
	logger.Info("challenge issued", "address", "0xabc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "challenge issued", line["msg"])
	assert.Equal(t, "0xabc", line["address"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	New("warn", "text", &buf).Info("dropped")
	assert.Empty(t, buf.String())

	New("debug", "", &buf).Debug("kept")
	assert.Contains(t, buf.String(), "msg=kept")
}

func TestWatermill(t *testing.T) {
	var buf bytes.Buffer
	adapter := Watermill(New("info", "text", &buf))

	adapter.Info("router started", watermill.LogFields{"topic": "wide.integrity.anchor"})
	assert.Contains(t, buf.String(), "component=watermill")
	assert.Contains(t, buf.String(), "wide.integrity.anchor")
}
