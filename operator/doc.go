// Package operator defines the contract every pipeline node implements and
// the registry that builds nodes from configuration.
//
// An Operator is driven by exactly one pipeline goroutine, so implementations
// need no internal locking. Each call receives a per-node *value.State that
// the pipeline keeps alive across calls.
//
// Built-in operators:
//
//   - passthrough: forwards every event to "out" unchanged.
//   - generic::batch: collects events and emits one batch event every
//     count events, when the oldest pending event is older than timeout, or
//     on a flush signal.
//
// The WAL operator lives in operator/wal and registers itself with
// wal.Register.
package operator
