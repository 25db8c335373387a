// Package buffer provides a bounded, thread-safe ring buffer with a
// configurable overflow policy.
//
// Writers never block: when the ring is full the policy decides whether the
// oldest queued item or the incoming item is dropped. Readers drain in
// batches and use Ready to wait for new items without polling.
//
//	ring, _ := buffer.New[[]byte](5000,
//		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
//		buffer.WithMetrics[[]byte](registry, "udp_in"),
//	)
//	_ = ring.Write(datagram)
//	for range ring.Ready() {
//		for _, item := range ring.ReadBatch(100) { ... }
//	}
//
// Statistics are always collected; Prometheus metrics are optional.
package buffer
