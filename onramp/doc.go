// Package onramp bridges external sources of raw byte messages into
// pipelines.
//
// A Source (HTTP listener, UDP socket, NATS subscription, WebSocket server)
// pushes raw messages onto a data channel. A Loop consumes that channel:
// every message runs through the preprocessor chain, each surviving buffer
// is decoded by the codec into an event, and each event is fanned out to
// the connected pipeline destinations.
//
// The loop is controlled through its Addr. Connect attaches destinations
// and Disconnect acknowledges and ends the loop. Control messages are
// always observed before the next data message. While no destination is
// connected the loop is Idle and raw messages are consumed and discarded,
// never buffered.
//
//	src, _ := onramp.Default.Create(cfg, deps)
//	o, _ := onramp.New(cfg, src, deps)
//	go o.Run(ctx)
//	o.Addr() <- onramp.Connect{Destinations: dests}
package onramp
