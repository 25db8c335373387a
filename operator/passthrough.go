package operator

import (
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/value"
)

// Passthrough forwards every event to the default output port.
type Passthrough struct{}

func newPassthrough(_ NodeConfig, _ Deps) (Operator, error) {
	return Passthrough{}, nil
}

// OnEvent implements Operator
func (Passthrough) OnEvent(_ string, _ *value.State, ev event.Event) ([]PortEvent, error) {
	return []PortEvent{Out(ev)}, nil
}
