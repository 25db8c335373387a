package pipeline

import (
	"fmt"

	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/tremorurl"
)

// DeliveryError records a failed delivery to one destination.
type DeliveryError struct {
	Destination tremorurl.URL
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Destination, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// FanoutResult summarizes one fan-out.
type FanoutResult struct {
	Delivered int
	Skipped   int
	Failed    []*DeliveryError
}

// Fanout delivers ev to every destination whose URL names an instance port,
// on that port. Every eligible destination but the last receives its own
// clone; the last receives ev itself. Destinations without a port are
// skipped. Delivery failures are collected per destination and never stop
// the fan-out.
func Fanout(dests []Destination, ev event.Event) FanoutResult {
	var res FanoutResult

	last := -1
	for i, d := range dests {
		if _, ok := d.URL.InstancePort(); ok {
			last = i
		}
	}

	for i, d := range dests {
		port, ok := d.URL.InstancePort()
		if !ok {
			res.Skipped++
			continue
		}

		out := ev
		if i != last {
			out = ev.Clone()
		}

		if err := d.Addr.TrySend(Event{Input: port, Event: out}); err != nil {
			res.Failed = append(res.Failed, &DeliveryError{Destination: d.URL, Err: err})
			continue
		}
		res.Delivered++
	}
	return res
}
