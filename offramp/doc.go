// Package offramp delivers pipeline output to external sinks.
//
// An Offramp owns a pipeline.Mailbox, so pipelines connect to it exactly
// as they connect to each other. Every data event is encoded with the
// offramp's codec and handed to a Sink; batch events are unbatched first.
// Flush signals reach sinks implementing Flusher.
//
// Built-in sinks are stdout, file and blackhole. Further sink types are
// registered with a Registry:
//
//	r := offramp.NewRegistry()
//	_ = nats.Register(r)
//	sink, err := r.Create(cfg, deps)
//	o, err := offramp.New(cfg, sink, deps)
package offramp
