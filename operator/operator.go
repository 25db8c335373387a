package operator

import (
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/value"
)

// Well-known port names.
const (
	PortIn  = "in"
	PortOut = "out"
	PortErr = "err"
)

// Operator is a node in a pipeline graph.
//
// OnEvent receives one event on an input port and returns the events to
// emit, each tagged with an output port. Output order is significant and an
// empty result is valid. When OnEvent fails the operator must remain usable
// for the next call.
type Operator interface {
	OnEvent(port string, state *value.State, ev event.Event) ([]PortEvent, error)
}

// PortEvent is an event bound for an output port.
type PortEvent struct {
	Port  string
	Event event.Event
}

// Out tags ev for the default output port.
func Out(ev event.Event) PortEvent {
	return PortEvent{Port: PortOut, Event: ev}
}

// Closer is implemented by operators holding resources such as a durable
// store.
type Closer interface {
	Close() error
}

// SignalHandler is implemented by operators that react to control events
// (event.Kind other than data). Operators without it never see signals.
type SignalHandler interface {
	OnSignal(state *value.State, ev event.Event) ([]PortEvent, error)
}
