package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter_LevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(Config{Level: "warn"}, &buf))

	l := WithComponent("poller")
	l.Info().Msg("dropped")
	l.Warn().Int("setpoint_w", 495).Msg("kept")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "poller", entry["component"])
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, float64(495), entry["setpoint_w"])
}

func TestInitWithWriter_DebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(Config{Level: "error", Debug: true}, &buf))

	l := GetLogger()
	l.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestInitWithWriter_BadLevel(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, InitWithWriter(Config{Level: "chatty"}, &buf))
}
