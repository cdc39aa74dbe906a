package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "valid minhop config",
			cfg: Config{
				RoutingEngine: EngineMinHop,
				LMC:           0,
				SweepInterval: metav1.Duration{Duration: DefaultSweepInterval},
			},
			wantErr: nil,
		},
		{
			name: "unknown routing engine",
			cfg: Config{
				RoutingEngine: "bogus",
			},
			wantErr: ErrInvalidRoutingEngine,
		},
		{
			name: "lmc out of range",
			cfg: Config{
				RoutingEngine: EngineFatTree,
				LMC:           8,
			},
			wantErr: ErrInvalidLMC,
		},
		{
			name: "nue requires positive max vls",
			cfg: Config{
				RoutingEngine: EngineNue,
				NueMaxNumVLs:  0,
			},
			wantErr: ErrInvalidNueMaxVLs,
		},
		{
			name: "nue with valid max vls",
			cfg: Config{
				RoutingEngine: EngineNue,
				NueMaxNumVLs:  4,
			},
			wantErr: nil,
		},
		{
			name: "torus requires dims",
			cfg: Config{
				RoutingEngine: EngineTorus,
			},
			wantErr: ErrInvalidTorusDims,
		},
		{
			name: "torus with valid 3d dims",
			cfg: Config{
				RoutingEngine: EngineTorus,
				TorusDims:     []int{3, 3, 3},
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateFillsDefaultSweepInterval(t *testing.T) {
	t.Parallel()

	cfg := Config{RoutingEngine: EngineMinHop}
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultSweepInterval, cfg.SweepInterval.Duration)
}

func TestConfigSweepIntervalOrDefault(t *testing.T) {
	t.Parallel()

	t.Run("unset falls back to default", func(t *testing.T) {
		cfg := Config{}
		assert.Equal(t, DefaultSweepInterval, cfg.SweepIntervalOrDefault())
	})

	t.Run("set value is preserved", func(t *testing.T) {
		cfg := Config{SweepInterval: metav1.Duration{Duration: DefaultSweepInterval * 2}}
		assert.Equal(t, DefaultSweepInterval*2, cfg.SweepIntervalOrDefault())
	})
}
