package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("report parsed", slog.String("date", "2020-04-13"))
		logger.Error("parse failed", slog.Int("corrections", 2))

		require.Len(t, handler.GetRecords(), 2)
		assert.True(t, handler.ContainsMessage("report parsed"))
		assert.True(t, handler.ContainsAttr("date", "2020-04-13"))
		assert.False(t, handler.ContainsAttr("date", "2020-04-14"))
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
		AssertLogContains(t, handler, slog.LevelWarn, "warn")
	})

	t.Run("keeps bound attributes", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With(slog.String("component", "exporter")).Info("series exported")

		AssertLogAttr(t, handler, "component", "exporter")
		assert.Len(t, handler.GetRecords(), 1, "derived loggers share the buffer")
	})
}
