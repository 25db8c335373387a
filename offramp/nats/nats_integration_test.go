//go:build integration

package nats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/natsclient"
	"github.com/jaysonsantos/tremor-runtime/offramp"
)

func TestIntegration_Publishes(t *testing.T) {
	tc := natsclient.NewTestClient(t)

	got := make(chan []byte, 1)
	require.NoError(t, tc.Client.Subscribe("tremor.out", "", func(data []byte) { got <- data }))
	require.NoError(t, tc.Client.Flush(context.Background()))

	cfg := DefaultConfig()
	cfg.URL = tc.URL
	cfg.Subject = "tremor.out"
	sink, err := New(cfg, "pub", offramp.Deps{})
	require.NoError(t, err)
	require.NoError(t, sink.Open(context.Background()))
	defer sink.Close()

	require.NoError(t, sink.Write(event.New(0, 1, "x"), []byte(`"x"`)))
	require.NoError(t, sink.Flush())

	select {
	case data := <-got:
		assert.Equal(t, `"x"`, string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("publish not received")
	}
}
