package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

const selectDocuments = "SELECT * FROM fiscal_documents WHERE tenant_id = ?"

func fieldValue(entry observer.LoggedEntry, key string) (string, bool) {
	for _, f := range entry.Context {
		if f.Key == key {
			return f.String, true
		}
	}
	return "", false
}

func TestGormLogger_Options(t *testing.T) {
	gormLog := NewGormLogger(zap.NewNop(), gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	assert.Equal(t, 500*time.Millisecond, gormLog.slowThreshold)
	assert.False(t, gormLog.ignoreRecordNotFoundError)

	var _ gormlogger.Interface = gormLog
}

func TestGormLogger_LogMode(t *testing.T) {
	gormLog := NewGormLogger(zap.NewNop(), gormlogger.Info)
	newLogger := gormLog.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	newGormLog, ok := newLogger.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, newGormLog.logLevel)
}

func TestGormLogger_MessageLevels(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Warn)
	ctx := context.Background()

	gormLog.Info(ctx, "suppressed")
	gormLog.Warn(ctx, "warn %s", "message")
	gormLog.Error(ctx, "error message")

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	assert.Equal(t, "warn message", logs[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, logs[1].Level)
}

func TestGormLogger_Trace(t *testing.T) {
	fc := func() (string, int64) { return selectDocuments, 3 }

	t.Run("error", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gormLog := NewGormLogger(zap.New(core), gormlogger.Error)

		gormLog.Trace(context.Background(), time.Now(), fc, errors.New("connection reset"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL Error", logs[0].Message)
	})

	t.Run("record not found ignored", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gormLog := NewGormLogger(zap.New(core), gormlogger.Error)

		gormLog.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)

		assert.Empty(t, recorded.All())
	})

	t.Run("slow query", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gormLog := NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(time.Nanosecond))

		gormLog.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "SLOW SQL")
	})

	t.Run("normal query at info", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gormLog := NewGormLogger(zap.New(core), gormlogger.Info)

		gormLog.Trace(context.Background(), time.Now(), fc, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL Query", logs[0].Message)
	})

	t.Run("silent", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gormLog := NewGormLogger(zap.New(core), gormlogger.Silent)

		gormLog.Trace(context.Background(), time.Now(), fc, errors.New("ignored"))

		assert.Empty(t, recorded.All())
	})
}

func TestGormLogger_Trace_CarriesRequestFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Info)

	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-42")
	ctx, _ = WithPrincipal(ctx, zap.NewNop(), "tenant-1", "user-1")

	gormLog.Trace(ctx, time.Now(), func() (string, int64) { return selectDocuments, 1 }, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	requestID, ok := fieldValue(logs[0], "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-42", requestID)
	tenantID, ok := fieldValue(logs[0], "tenant_id")
	require.True(t, ok)
	assert.Equal(t, "tenant-1", tenantID)
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
