package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	log, err := New(Config{Level: "debug"})
	require.NoError(t, err)
	require.NotNil(t, log)

	dev, err := New(Config{Level: "info", Development: true})
	require.NoError(t, err)
	require.NotNil(t, dev)

	// Unknown levels fall back to info rather than failing.
	fallback, err := New(Config{Level: "shouting"})
	require.NoError(t, err)
	require.NotNil(t, fallback)
}

func TestWithVariants(t *testing.T) {
	t.Parallel()

	log, err := New(Config{Level: "error"})
	require.NoError(t, err)

	require.NotNil(t, log.With("key", "value"))
	require.NotNil(t, log.WithComponent("test"))
	require.NotNil(t, log.WithError(errors.New("boom")))
}

func TestToZapFields(t *testing.T) {
	t.Parallel()

	require.Nil(t, toZapFields(nil))

	fields := toZapFields([]any{"count", 3, "name", "x"})
	require.Len(t, fields, 2)
	require.Equal(t, zap.Any("count", 3), fields[0])

	// Pre-built zap fields pass through untouched.
	fields = toZapFields([]any{zap.String("k", "v"), "count", 1})
	require.Len(t, fields, 2)
	require.Equal(t, zap.String("k", "v"), fields[0])

	// A trailing key with no value is dropped.
	fields = toZapFields([]any{"lonely"})
	require.Empty(t, fields)

	// Non-string keys are skipped.
	fields = toZapFields([]any{42, "count", 1})
	require.Len(t, fields, 1)
}

func TestNoOpLoggerIsSafe(t *testing.T) {
	t.Parallel()

	log := NewNoOp()
	log.Debug("msg", "k", "v")
	log.Info("msg")
	log.Warn("msg")
	log.Error("msg", "error", errors.New("boom"))
	require.NotNil(t, log.With("k", "v"))
	require.NotNil(t, log.WithComponent("c"))
	require.NotNil(t, log.WithError(errors.New("boom")))
}
