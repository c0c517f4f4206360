package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew(t *testing.T) {
	t.Run("writes json to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "docnumber.log")

		l, err := New(Config{Level: "warn", Format: "json", Output: path})
		require.NoError(t, err)
		l.Info("dropped")
		l.Warn("sequence lock timeout")
		require.NoError(t, l.Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"sequence lock timeout"`)
		assert.NotContains(t, string(data), "dropped")
	})

	t.Run("unwritable output", func(t *testing.T) {
		_, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
		assert.Error(t, err)
	})

	t.Run("environments", func(t *testing.T) {
		for _, env := range []string{"production", "development"} {
			l, err := NewForEnvironment(env, "debug")
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
		}
	})
}
