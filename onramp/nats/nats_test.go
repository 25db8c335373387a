package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/onramp"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) { c.Subject = "events.>" }, false},
		{"missing subject", func(*Config) {}, true},
		{"subject with space", func(c *Config) { c.Subject = "a b" }, true},
		{"missing url", func(c *Config) { c.Subject = "a"; c.URL = "" }, true},
		{"zero timeout", func(c *Config) { c.Subject = "a"; c.ConnectTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRegister(t *testing.T) {
	r := onramp.NewRegistry()
	require.NoError(t, Register(r))

	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("subject: logs\nqueue: workers\n"), &node))
	src, err := r.Create(config.OnrampConfig{ID: "in", Type: Type, Config: node}, onramp.Deps{})
	require.NoError(t, err)

	s := src.(*Source)
	assert.Equal(t, "logs", s.cfg.Subject)
	assert.Equal(t, "workers", s.cfg.Queue)
	assert.Equal(t, "in", s.cfg.Name)

	var bad yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("subjct: logs\n"), &bad))
	_, err = r.Create(config.OnrampConfig{ID: "in", Type: Type, Config: bad}, onramp.Deps{})
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestSource_StopBeforeStart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Subject = "a"
	s, err := New(cfg, "in", onramp.Deps{})
	require.NoError(t, err)
	assert.NoError(t, s.Stop())
}
