//go:build integration

package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_PublishSubscribe(t *testing.T) {
	tc := NewTestClient(t)
	require.True(t, tc.Client.IsHealthy())

	got := make(chan []byte, 1)
	require.NoError(t, tc.Client.Subscribe("tremor.test", "", func(data []byte) { got <- data }))
	require.NoError(t, tc.Client.Flush(context.Background()))

	require.NoError(t, tc.Client.Publish("tremor.test", []byte("hello")))
	select {
	case data := <-got:
		assert.Equal(t, "hello", string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}
