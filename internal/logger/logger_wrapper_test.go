package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leandrodaf/midimcp/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core)

	l.Info("port opened",
		l.Field().String("name", "Synth A"),
		l.Field().Int("index", 1),
		l.Field().Bool("virtual", false),
		l.Field().Error("error", nil))
	l.Warn("dropped", l.Field().Error("error", errors.New("closed")))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, map[string]any{"name": "Synth A", "index": int64(1), "virtual": false}, entries[0].ContextMap())

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "closed", entries[1].ContextMap()["error"])
}

func TestZapLogger_SetLevel(t *testing.T) {
	l := NewZapLogger().(*ZapLogger)

	l.SetLevel(contracts.WarnLevel)
	assert.False(t, l.level.Enabled(zapcore.InfoLevel))
	assert.True(t, l.level.Enabled(zapcore.ErrorLevel))

	l.SetLevel(contracts.DebugLevel)
	assert.True(t, l.level.Enabled(zapcore.DebugLevel))
}

func TestZapLogger_SetDestinationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "midimcp.log")
	l := NewZapLogger().(*ZapLogger)

	l.SetDestination(contracts.FileLog, path)
	l.Info("to file", l.Field().String("k", "v"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestToZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, toZapLevel(contracts.DebugLevel))
	assert.Equal(t, zapcore.InfoLevel, toZapLevel(contracts.InfoLevel))
	assert.Equal(t, zapcore.FatalLevel, toZapLevel(contracts.FatalLevel))
	assert.Equal(t, zapcore.InfoLevel, toZapLevel(contracts.LogLevel(0)))
}
