package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetSilentMode(true)
	SetLevel(LOG_INFO)

	log := WithComponent("viera")
	log.Info().Str("host", "10.0.0.5").Msg("Responded, TV is on")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "viera", line["component"])
	assert.Equal(t, "10.0.0.5", line["host"])
	assert.Equal(t, "Responded, TV is on", line["message"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetSilentMode(true)

	SetLevel(LOG_WARN)
	Info("hidden")
	Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	SetLevel(LOG_INFO)
}

func TestSetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.log")
	SetSilentMode(true)
	SetFile(path, 1, 1)
	SetLevel(LOG_INFO)

	Info("written to file")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to file"))

	assert.NoError(t, Close(), "closing twice is harmless")
}
