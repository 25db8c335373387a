// Package natsclient manages a NATS connection for onramps and offramps.
//
// A Client wraps nats.go with connection status tracking, structured
// logging, bounded drain on close and classified errors. Connection loss
// after Connect is handled by the nats.go reconnect loop; status and
// callbacks follow it.
//
//	c, _ := natsclient.NewClient("nats://localhost:4222", natsclient.WithName("tremor"))
//	if err := c.Connect(ctx); err != nil { ... }
//	defer c.Close(ctx)
//	_ = c.Subscribe("events.>", "", func(data []byte) { ... })
//
// NewTestClient (integration build tag) starts a NATS server in a container
// through testcontainers-go.
package natsclient
