package bootstrap

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carga-pendencia/cnpj-queue/config"
)

func TestValidateServiceConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.AppConfig
		wantErr  bool
		errMatch string
	}{
		{
			name:     "nil config",
			cfg:      nil,
			wantErr:  true,
			errMatch: "service config is required",
		},
		{
			name:    "single service",
			cfg:     &config.AppConfig{Services: "stream-worker"},
			wantErr: false,
		},
		{
			name:    "multiple services",
			cfg:     &config.AppConfig{Services: "stream-worker,batch-worker,reaper"},
			wantErr: false,
		},
		{
			name:     "unknown service",
			cfg:      &config.AppConfig{Services: "alert-worker"},
			wantErr:  true,
			errMatch: "invalid service configuration",
		},
		{
			name:     "empty services",
			cfg:      &config.AppConfig{Services: ""},
			wantErr:  true,
			errMatch: "invalid service configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServiceConfig(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMatch)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGetEnabledServices(t *testing.T) {
	t.Run("nil config yields empty list", func(t *testing.T) {
		assert.Empty(t, GetEnabledServices(nil))
	})

	t.Run("stable order regardless of input order", func(t *testing.T) {
		cfg := &config.AppConfig{Services: "reaper,stream-worker"}
		assert.Equal(t, []string{"stream-worker", "reaper"}, GetEnabledServices(cfg))
	})

	t.Run("invalid input yields empty list", func(t *testing.T) {
		cfg := &config.AppConfig{Services: "nonsense"}
		assert.Empty(t, GetEnabledServices(cfg))
	})
}

func TestErrorChannelBufferSize(t *testing.T) {
	assert.Equal(t, 1, errorChannelBufferSize(nil))
	assert.Equal(t, 2, errorChannelBufferSize(map[config.ServiceMode]bool{
		config.ServiceModeStreamWorker: true,
	}))
	assert.Equal(t, 4, errorChannelBufferSize(map[config.ServiceMode]bool{
		config.ServiceModeStreamWorker: true,
		config.ServiceModeBatchWorker:  true,
		config.ServiceModeReaper:       true,
	}))
}

func TestBuildObservability(t *testing.T) {
	t.Run("disabled metrics leave the sink nil", func(t *testing.T) {
		obs := buildObservability(slog.Default(), config.ObservabilityConfig{})
		assert.Nil(t, obs.MetricsSink)
	})

	t.Run("enabled metrics build a sink", func(t *testing.T) {
		obs := buildObservability(slog.Default(), config.ObservabilityConfig{
			Metrics: config.MetricsConfig{
				Enabled:       true,
				StatsdAddress: "localhost:8125",
				Prefix:        "cnpjqueue_test",
			},
		})
		require.NotNil(t, obs.MetricsSink)
		assert.True(t, obs.MetricsSink.Enabled())
		require.NoError(t, obs.MetricsSink.Close())
	})
}

func TestNewServices(t *testing.T) {
	t.Run("nil deps are rejected", func(t *testing.T) {
		_, err := NewServices(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "service dependencies are required")
	})

	t.Run("missing redis client fails the broker build", func(t *testing.T) {
		_, err := NewServices(&ServiceDeps{Config: &config.AppConfig{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "build broker adapter")
	})
}
