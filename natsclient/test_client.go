//go:build integration

package natsclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DefaultTestImage is the NATS server image used by integration tests. The
// TREMOR_NATS_IMAGE environment variable overrides it.
const DefaultTestImage = "nats:2.10-alpine"

// TestClient is a Client connected to a throwaway NATS server
type TestClient struct {
	Client *Client
	URL    string
}

// StartTestServer runs a NATS container for the lifetime of t and returns
// its client URL.
func StartTestServer(t testing.TB) string {
	t.Helper()

	image := DefaultTestImage
	if v := os.Getenv("TREMOR_NATS_IMAGE"); v != "" {
		image = v
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", image, err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	if err != nil {
		t.Fatalf("resolve nats endpoint: %v", err)
	}
	return endpoint
}

// NewTestClient starts a server with StartTestServer and connects a Client
// to it. The client is closed by t.Cleanup.
func NewTestClient(t testing.TB) *TestClient {
	t.Helper()
	url := StartTestServer(t)

	client, err := NewClient(url, WithTimeout(5*time.Second), WithMaxReconnects(0), WithName(t.Name()))
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect to %s: %v", url, err)
	}
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	return &TestClient{Client: client, URL: url}
}
