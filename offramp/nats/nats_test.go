package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/offramp"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		wantErr bool
	}{
		{"literal", "events.out", false},
		{"empty", "", true},
		{"wildcard", "events.*", true},
		{"full wildcard", "events.>", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Subject = tt.subject
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSink_NotOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Subject = "out"
	s, err := New(cfg, "sink", offramp.Deps{})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Write(event.Event{}, []byte("x")), errors.ErrNotStarted)
	assert.NoError(t, s.Flush())
	assert.NoError(t, s.Close())
}

func TestRegister(t *testing.T) {
	r := offramp.NewRegistry()
	require.NoError(t, Register(r))

	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("subject: out\n"), &node))
	sink, err := r.Create(config.OfframpConfig{ID: "pub", Type: Type, Config: node}, offramp.Deps{})
	require.NoError(t, err)
	assert.Equal(t, "pub", sink.(*Sink).cfg.Name)
}
