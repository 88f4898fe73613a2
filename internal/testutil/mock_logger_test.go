package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("bins computed", logging.Int("groups", 3))

	messages := logger.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "bins computed", messages[0].Message)
	v, ok := messages[0].Field("groups")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	logger.Clear()
	assert.Empty(t, logger.GetMessages())

	logger.Error("cache write failed")
	assert.True(t, logger.HasMessage("error", "cache write failed"))
	assert.False(t, logger.HasMessage("info", "bins computed"))
}

func TestMockLogger_WithAndNamedShareRecord(t *testing.T) {
	root := testutil.NewMockLogger()
	child := root.Named("explorer").With(logging.SessionID("s-1")).Named("bins")

	child.Warn("stale level")

	msg, ok := root.Find("warn", "stale level")
	require.True(t, ok)
	assert.Equal(t, "explorer.bins", msg.Name)
	sid, ok := msg.Field("session_id")
	assert.True(t, ok)
	assert.Equal(t, "s-1", sid)
}
