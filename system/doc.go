// Package system assembles a runtime from configuration.
//
// A World builds every offramp, pipeline and onramp a config.Config
// declares, applies its bindings and runs them on one stopper context.
// Start-up goes from sinks to sources so that nothing emits before its
// destinations exist; shutdown runs in the opposite direction:
//
//  1. onramps are disconnected (acknowledged) and their sources stopped
//  2. pipelines stop and release their operators, closing WAL stores
//  3. offramps deliver what is still queued, flush and close
//
// Events still queued in a pipeline mailbox when it stops are dropped;
// WAL operators replay anything logged but not yet forwarded on the next
// start.
package system
