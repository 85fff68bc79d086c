package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogBeforeInitIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("not initialized", zap.String("k", "v"))
		Named("cache").Warn("still fine")
	})
}

func TestInitWritesJSONToFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Init("debug", "json", path))

	Info("hello", zap.Int64("resource_id", 7))
	Named("matcher").Warn("named")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"resource_id":7`)
	assert.Contains(t, string(data), `"service":"bywebapp"`)
	assert.Contains(t, string(data), `"component":"matcher"`)
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	assert.Error(t, Init("loud", "json", "stdout"))
}
