package componentregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

func TestNew(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	assert.Equal(t, []string{"http", "nats", "udp", "ws"}, r.Onramps.Names())
	assert.Equal(t, []string{"blackhole", "file", "nats", "stdout"}, r.Offramps.Names())
	assert.Equal(t, []string{"generic::batch", "generic::wal", "passthrough"}, r.Operators.Names())
}

func TestRegister_Twice(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	err = Register(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestRegister_NilRegistries(t *testing.T) {
	err := Register(Registries{})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
