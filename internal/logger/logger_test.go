package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "whispers.log")

	log, err := New(Config{Level: "debug", Encoding: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("chain reset", zap.String("session_id", "abc"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `"msg":"chain reset"`)
	assert.Contains(t, content, `"session_id":"abc"`)
	assert.Contains(t, content, `"level":"INFO"`)
	assert.Contains(t, content, `"timestamp"`)
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whispers.log")

	log, err := New(Config{Level: "loud", OutputPath: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("visible")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "hidden"))
	assert.Contains(t, string(data), "visible")
}

func TestNop(t *testing.T) {
	assert.NotNil(t, Nop())
}
