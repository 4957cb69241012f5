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
	"gorm.io/gorm"
)

func newObserved(threshold time.Duration) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), threshold), logs
}

func TestTraceLevels(t *testing.T) {
	query := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("normal query at debug", func(t *testing.T) {
		g, logs := newObserved(0)
		g.Trace(context.Background(), time.Now(), query, nil)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
	})

	t.Run("record not found is not a warning", func(t *testing.T) {
		g, logs := newObserved(0)
		g.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
	})

	t.Run("errors at warn", func(t *testing.T) {
		g, logs := newObserved(0)
		g.Trace(context.Background(), time.Now(), query, errors.New("boom"))
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "query error", logs.All()[0].Message)
		assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	})

	t.Run("slow query at warn", func(t *testing.T) {
		g, logs := newObserved(time.Millisecond)
		g.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "slow query", logs.All()[0].Message)
	})
}

func TestLogModeKeepsAdapter(t *testing.T) {
	g, _ := newObserved(0)
	assert.Same(t, g, g.LogMode(0))
}
