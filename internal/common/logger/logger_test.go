package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapWrapper_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := Component(NewZapAdapter(zap.New(core)), "sweep")

	log.WithFields(map[string]interface{}{"notificationId": "notif_1"}).
		Warn("user missing", map[string]interface{}{"error": errors.New("gone")})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "user missing", entry.Message)
	assert.Equal(t, zapcore.WarnLevel, entry.Level)

	ctx := entry.ContextMap()
	assert.Equal(t, "sweep", ctx["component"])
	assert.Equal(t, "notif_1", ctx["notificationId"])
	assert.Equal(t, "gone", ctx["error"])
}

func TestNew_Levels(t *testing.T) {
	assert.True(t, New("debug", "json").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("warn", "console").Core().Enabled(zapcore.InfoLevel))
	assert.False(t, New("", "json").Core().Enabled(zapcore.DebugLevel))
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	log.Info("ignored", nil)
	log.WithError(errors.New("x")).Error("ignored", nil)
}
