package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kwanza/fiscal/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestFromAppConfig(t *testing.T) {
	t.Run("development keeps configured format", func(t *testing.T) {
		cfg := &config.Config{
			App: config.AppConfig{Name: "kwanza-fiscal", Env: "development"},
			Log: config.LogConfig{Level: "debug", Format: "console"},
		}
		lc := FromAppConfig(cfg)
		assert.Equal(t, "debug", lc.Level)
		assert.Equal(t, "console", lc.Format)
		assert.Equal(t, "stdout", lc.Output)
		assert.Equal(t, "kwanza-fiscal", lc.Service)
	})

	t.Run("production forces json", func(t *testing.T) {
		cfg := &config.Config{
			App: config.AppConfig{Name: "kwanza-fiscal", Env: "production"},
			Log: config.LogConfig{Level: "info", Format: "console", Output: "stderr"},
		}
		lc := FromAppConfig(cfg)
		assert.Equal(t, "json", lc.Format)
		assert.Equal(t, "stderr", lc.Output)
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"console", &Config{Level: "info", Format: "console", Output: "stdout"}},
		{"json", &Config{Level: "warn", Format: "json", Output: "stderr", Service: "kwanza-fiscal"}},
		{"defaults", &Config{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, l)
			assert.NotPanics(t, func() { l.Info("ready") })
		})
	}

	t.Run("nil config", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fiscal.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path, Service: "kwanza-fiscal"})
	require.NoError(t, err)

	l.Info("document issued")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"document issued"`)
	assert.Contains(t, string(data), `"service":"kwanza-fiscal"`)
}

func TestNew_UnwritableFile(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "fiscal.log")})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
