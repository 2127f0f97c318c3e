package log

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level Level) (*Logger, *observer.ObservedLogs) {
	zapLevel := zap.NewAtomicLevelAt(toZapLevel(level))
	core, logs := observer.New(zapLevel)
	return &Logger{zapLogger: zap.New(core), zapLevel: zapLevel}, logs
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		" warn ":  LevelWarn,
		"error":   LevelError,
		"fatal":   LevelFatal,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
	assert.Equal(t, "warn", LevelWarn.String())
}

func TestLoggerFields(t *testing.T) {
	logger, logs := newObserved(LevelDebug)

	logger.Info("tick",
		String("runner", "guard"),
		Int("nodes", 5),
		Uint64("tick", 3),
		Duration("took", time.Millisecond),
		Bool("ok", true),
		Error(errors.New("boom")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "guard", ctx["runner"])
	assert.Equal(t, int64(5), ctx["nodes"])
	assert.Equal(t, uint64(3), ctx["tick"])
	assert.Equal(t, time.Millisecond, ctx["took"])
	assert.Equal(t, true, ctx["ok"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestLoggerLevels(t *testing.T) {
	logger, logs := newObserved(LevelInfo)

	logger.Debug("hidden")
	logger.Info("shown")
	assert.Equal(t, 1, logs.Len())

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, logger.GetLevel())
	logger.Debug("now shown")
	assert.Equal(t, 2, logs.Len())

	logger.SetLevel(LevelError)
	logger.Log(LevelWarn, "dropped")
	logger.Log(LevelError, "kept")
	assert.Equal(t, 3, logs.Len())
}

func TestLoggerWithAndContext(t *testing.T) {
	logger, logs := newObserved(LevelDebug)

	logger.Named("agents").With(String("component", "manager")).Info("spawned")
	ctx := ContextWithAgent(context.Background(), "a-1")
	logger.WithContext(ctx).Warn("slow")
	logger.WithContext(context.Background()).Error("plain")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "agents", entries[0].LoggerName)
	assert.Equal(t, "manager", entries[0].ContextMap()["component"])
	assert.Equal(t, "a-1", entries[1].ContextMap()["agent"])
	assert.NotContains(t, entries[2].ContextMap(), "agent")
}

func TestNopAndProvide(t *testing.T) {
	nop := NewNop()
	assert.NotPanics(t, func() {
		nop.Info("ignored", Any("x", struct{}{}))
		nop.Debug("ignored")
	})
	assert.NotNil(t, Provide())
}
