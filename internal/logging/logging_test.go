package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewConsole(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, _ := New(Config{Level: "info", Output: &buf})

	log.Debug("hidden")
	log.Info("saving bigfile", zap.String("hash", "fb2f85c8"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "info")
	assert.Contains(t, out, "git-bigfile")
	assert.Contains(t, out, "saving bigfile")
	assert.Contains(t, out, `"hash": "fb2f85c8"`)
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, _ := New(Config{Level: "debug", Format: "json", Output: &buf})
	log.Debug("recovering bigfile")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "recovering bigfile", entry["msg"])
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, level := New(Config{Level: "chatty", Output: &buf})
	assert.Equal(t, "info", level.String())

	log.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestInitAndSetLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Init(Config{Output: &bytes.Buffer{}}) })

	S().Info("hidden")
	assert.Empty(t, buf.String())

	SetLevel("info")
	L().Info("shown")
	assert.Contains(t, buf.String(), "shown")
}
