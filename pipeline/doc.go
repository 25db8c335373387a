// Package pipeline hosts operator chains.
//
// A Pipeline owns a bounded Mailbox and runs its operators on a single
// goroutine. Events enter on an input port and travel down a linear chain of
// nodes: an operator's "out" port feeds the next node's "in" port, and every
// other port leaves the pipeline. Events reaching the end of the chain, or
// any non-"out" port, are fanned out to the destinations connected to that
// output port.
//
// Connect and Disconnect messages mutate a pipeline's outputs from within
// its own goroutine, so destination lists need no locking.
package pipeline
