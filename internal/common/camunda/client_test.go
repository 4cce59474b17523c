package camunda

import (
	"errors"
	"testing"
	"time"

	"notification-engine/internal/common/config"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"i/o timeout", true},
		{"write: broken pipe", true},
		{"rpc error: code = NotFound desc = job not found", false},
		{"permission denied", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(errors.New(tt.msg)))
		})
	}
}

func TestConfigFromApp(t *testing.T) {
	cfg := ConfigFromApp(config.CamundaConfig{BrokerAddress: "zeebe:26500", Timeout: 2500})
	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.True(t, cfg.UsePlaintextConnection)
	assert.Equal(t, 2500*time.Millisecond, cfg.ConnectionTimeout)
	assert.Equal(t, DefaultRetryConfig, cfg.RetryConfig)

	assert.Equal(t, 10*time.Second, ConfigFromApp(config.CamundaConfig{}).ConnectionTimeout)
}
