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

func statement() (string, int64) {
	return "SELECT * FROM service_orders WHERE tenant_id = 'x'", 2
}

func newObservedGorm(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func TestGormLogger_Trace(t *testing.T) {
	boom := errors.New("connection reset")
	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		elapsed time.Duration
		err     error
		msg     string
		zl      zapcore.Level
	}{
		{"error", gormlogger.Error, 0, boom, "SQL error", zapcore.ErrorLevel},
		{"slow", gormlogger.Warn, time.Second, nil, "Slow SQL query", zapcore.WarnLevel},
		{"plain query at info", gormlogger.Info, 0, nil, "SQL query", zapcore.DebugLevel},
		{"not found is a plain query", gormlogger.Info, 0, gormlogger.ErrRecordNotFound, "SQL query", zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, recorded := newObservedGorm(tt.level)
			l.Trace(context.Background(), time.Now().Add(-tt.elapsed), statement, tt.err)

			entries := recorded.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.msg, entries[0].Message)
			assert.Equal(t, tt.zl, entries[0].Level)
			assert.Equal(t, "gorm", entries[0].LoggerName)
			assert.EqualValues(t, 2, entries[0].ContextMap()["rows"])
		})
	}
}

func TestGormLogger_TraceSuppressed(t *testing.T) {
	l, recorded := newObservedGorm(gormlogger.Silent)
	l.Trace(context.Background(), time.Now(), statement, errors.New("x"))

	l2, recorded2 := newObservedGorm(gormlogger.Warn)
	l2.Trace(context.Background(), time.Now(), statement, nil)
	l2.Trace(context.Background(), time.Now(), statement, gormlogger.ErrRecordNotFound)

	assert.Zero(t, recorded.Len())
	assert.Zero(t, recorded2.Len())
}

func TestGormLogger_Options(t *testing.T) {
	l, recorded := newObservedGorm(gormlogger.Warn, WithSlowThreshold(0), WithRecordNotFoundLogging(true))

	l.Trace(context.Background(), time.Now().Add(-time.Hour), statement, nil)
	assert.Zero(t, recorded.Len())

	l.Trace(context.Background(), time.Now(), statement, gormlogger.ErrRecordNotFound)
	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "SQL error", recorded.All()[0].Message)
}

func TestGormLogger_CarriesContextIDs(t *testing.T) {
	l, recorded := newObservedGorm(gormlogger.Info)
	ctx, _ := WithSweepID(context.Background(), zap.NewNop(), "sweep-1")
	ctx, _ = WithRequestID(ctx, zap.NewNop(), "req-2")

	l.Trace(ctx, time.Now(), statement, nil)
	l.Info(ctx, "migrated %d tables", 2)

	entries := recorded.All()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "sweep-1", e.ContextMap()["sweep_id"])
		assert.Equal(t, "req-2", e.ContextMap()["request_id"])
	}
	assert.Equal(t, "migrated 2 tables", entries[1].Message)
}

func TestGormLogger_LogMode(t *testing.T) {
	l, recorded := newObservedGorm(gormlogger.Silent)
	louder := l.LogMode(gormlogger.Info)

	louder.Warn(context.Background(), "pool at %d%%", 90)
	l.Warn(context.Background(), "ignored")

	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "pool at 90%", recorded.All()[0].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("info"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
