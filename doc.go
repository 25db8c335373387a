// Package tremor is an event processing runtime: onramps ingest raw bytes,
// pipelines of operators transform the decoded events, and offramps encode
// and emit them. A write-ahead log operator makes a pipeline durable by
// persisting every event before it is forwarded.
//
// # Dataflow
//
//	onramp (preprocess, decode) -> pipeline (operators) -> offramp (encode, sink)
//
// Artefacts are addressed by resource URLs (package tremorurl) of the form
// tremor://host/<type>/<artefact>/<instance>/<port>. A binding connects a
// producer port to one or more consumer ports; the runtime resolves bindings
// into mailbox connections when it starts.
//
// # Packages
//
// Core dataflow:
//   - event: the Event type, batching and the msgpack persistence format
//   - value: operator state
//   - codec, preprocessor: byte framing and decoding registries
//   - onramp: the source dispatch loop plus udp, http, ws and nats sources
//   - pipeline: mailboxes, fanout and the linear operator chain
//   - operator: the operator contract and registry; operator/wal is the
//     durable write-ahead log
//   - offramp: the sink contract plus stdout, file, blackhole and nats sinks
//   - system: builds and runs a configured set of artefacts
//
// Infrastructure:
//   - config: YAML configuration loading and validation
//   - errors: the error taxonomy shared by every package
//   - storage, storage/wal: the ordered log abstraction and its badger store
//   - natsclient: NATS connection lifecycle
//   - metric, health: Prometheus metrics and the /health endpoint
//   - pkg/buffer, pkg/retry: bounded buffers and retry with backoff
//   - componentregistry: registers every shipped connector and operator
//
// # Running
//
//	tremor run -c tremor.yaml
//	tremor validate -c tremor.yaml
//	tremor wal dump ./data/wal
//
// # Delivery Guarantees
//
// Events inside a pipeline are processed in arrival order. Events pass a WAL
// operator only after they are persisted, so a restarted pipeline replays
// what was logged but not yet forwarded: delivery downstream of a WAL is at
// least once. Delivery into full mailboxes fails fast and is counted rather
// than blocking the producer.
package tremor
