package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		want    zapcore.Level
		wantErr bool
	}{
		{name: "debug", level: "debug", want: zapcore.DebugLevel},
		{name: "warn", level: "warn", want: zapcore.WarnLevel},
		{name: "empty means info", level: "", want: zapcore.InfoLevel},
		{name: "unknown", level: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(Config{Level: tt.level})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			assert.False(t, logger.Core().Enabled(tt.want-1))
		})
	}
}

func TestFromSettings(t *testing.T) {
	dev := FromSettings("", true)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	prod := FromSettings("error", false)
	assert.False(t, prod.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, prod.Core().Enabled(zapcore.ErrorLevel))

	fallback := FromSettings("chatty", false)
	assert.True(t, fallback.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, fallback.Core().Enabled(zapcore.DebugLevel))
}

func TestComponent(t *testing.T) {
	logger := NewDefault()
	named := logger.Component("constellation")
	require.NotNil(t, named)
	assert.True(t, named.Core().Enabled(zapcore.InfoLevel))
}
