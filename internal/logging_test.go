package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitLogging(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	logger, err := InitLogging("warn", false, "")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.Same(t, logger, zap.L())
}

func TestInitLogging_Filter(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	logger, err := InitLogging("info", true, "info+:* debug+:clock")
	require.NoError(t, err)
	assert.NotNil(t, logger.Named("clock"))
}

func TestInitLogging_Invalid(t *testing.T) {
	_, err := InitLogging("loud", false, "")
	assert.Error(t, err)
}
