package udp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/metric"
	"github.com/jaysonsantos/tremor-runtime/onramp"
)

func startSource(t *testing.T, cfg Config) (*Source, chan []byte) {
	t.Helper()
	cfg.Host = "127.0.0.1"
	src, err := New(cfg, "test", onramp.Deps{MetricsRegistry: metric.NewMetricsRegistry()})
	require.NoError(t, err)

	out := make(chan []byte, 16)
	require.NoError(t, src.Start(context.Background(), out))
	t.Cleanup(func() { require.NoError(t, src.Stop()) })
	return src, out
}

func send(t *testing.T, addr net.Addr, payloads ...string) {
	t.Helper()
	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	for _, p := range payloads {
		_, err := conn.Write([]byte(p))
		require.NoError(t, err)
	}
}

func TestSource_ForwardsDatagrams(t *testing.T) {
	src, out := startSource(t, DefaultConfig())
	require.NotNil(t, src.Addr())

	send(t, src.Addr(), "one", "two")

	var got []string
	for len(got) < 2 {
		select {
		case data := <-out:
			got = append(got, string(data))
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)

	received, dropped, errs := src.Stats()
	assert.Equal(t, int64(2), received)
	assert.Zero(t, dropped)
	assert.Zero(t, errs)
}

func TestSource_StopIsIdempotent(t *testing.T) {
	src, err := New(Config{Host: "127.0.0.1", BufferSize: 4}, "", onramp.Deps{})
	require.NoError(t, err)
	require.NoError(t, src.Stop())

	require.NoError(t, src.Start(context.Background(), make(chan []byte, 1)))
	require.NoError(t, src.Start(context.Background(), make(chan []byte, 1)))
	require.NoError(t, src.Stop())
	require.NoError(t, src.Stop())
	assert.Nil(t, src.Addr())
}

func TestSource_BindConflict(t *testing.T) {
	first, _ := startSource(t, DefaultConfig())
	port := first.Addr().(*net.UDPAddr).Port

	cfg := Config{Host: "127.0.0.1", Port: port, BufferSize: 4}
	second, err := New(cfg, "", onramp.Deps{})
	require.NoError(t, err)
	second.retryConfig.MaxAttempts = 1

	err = second.Start(context.Background(), make(chan []byte))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative port", func(c *Config) { c.Port = -1 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"zero buffer", func(c *Config) { c.BufferSize = 0 }, true},
		{"negative socket buffer", func(c *Config) { c.SocketBuffer = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	r := onramp.NewRegistry()
	require.NoError(t, Register(r))

	var root yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("host: 127.0.0.1\nbuffer_size: 10\n"), &root))
	src, err := r.Create(config.OnrampConfig{ID: "u", Type: Type, Config: *root.Content[0]}, onramp.Deps{})
	require.NoError(t, err)
	assert.Equal(t, 10, src.(*Source).cfg.BufferSize)
	assert.Equal(t, DefaultConfig().SocketBuffer, src.(*Source).cfg.SocketBuffer)

	var bad yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("hots: 127.0.0.1\n"), &bad))
	_, err = r.Create(config.OnrampConfig{ID: "u", Type: Type, Config: *bad.Content[0]}, onramp.Deps{})
	assert.ErrorIs(t, err, errors.ErrConfig)
}
