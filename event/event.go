// Package event defines the envelope routed through the dataflow graph.
package event

import (
	"bytes"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/value"
)

// Kind discriminates control signals from ordinary data. The zero value is data.
type Kind string

const (
	// KindData marks an ordinary data event.
	KindData Kind = ""
	// KindFlush asks stateful operators to emit whatever they hold.
	KindFlush Kind = "flush"
	// KindDrain announces that the upstream is shutting down.
	KindDrain Kind = "drain"
)

// Event is the unit of data passed between onramps, operators and offramps.
//
// ID is a provenance tag assigned once by the producing onramp; it is not
// unique across onramps. IngestNS is captured at first ingestion and never
// recomputed. Clones share both.
type Event struct {
	ID       uint64         `msgpack:"id"`
	Value    any            `msgpack:"value"`
	Meta     map[string]any `msgpack:"meta"`
	IngestNS uint64         `msgpack:"ingest_ns"`
	IsBatch  bool           `msgpack:"is_batch"`
	Kind     Kind           `msgpack:"kind,omitempty"`
}

// New builds a data event with empty metadata.
func New(id, ingestNS uint64, v any) Event {
	return Event{
		ID:       id,
		Value:    v,
		Meta:     map[string]any{},
		IngestNS: ingestNS,
	}
}

// Signal builds a control event of the given kind.
func Signal(kind Kind, ingestNS uint64) Event {
	return Event{
		Meta:     map[string]any{},
		IngestNS: ingestNS,
		Kind:     kind,
	}
}

// IsSignal reports whether the event is a control signal.
func (e Event) IsSignal() bool {
	return e.Kind != KindData
}

// Clone returns an independently owned deep copy with the same ID and
// ingest timestamp.
func (e Event) Clone() Event {
	return Event{
		ID:       e.ID,
		Value:    value.Clone(e.Value),
		Meta:     value.CloneMap(e.Meta),
		IngestNS: e.IngestNS,
		IsBatch:  e.IsBatch,
		Kind:     e.Kind,
	}
}

// Equal reports whether two events are equal in every observable field.
func (e Event) Equal(other Event) bool {
	return e.ID == other.ID &&
		e.IngestNS == other.IngestNS &&
		e.IsBatch == other.IsBatch &&
		e.Kind == other.Kind &&
		value.Equal(e.Value, other.Value) &&
		value.Equal(mapOrEmpty(e.Meta), mapOrEmpty(other.Meta))
}

func mapOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Marshal serializes the envelope. Map keys are sorted so equal events
// produce identical bytes.
func (e Event) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&e); err != nil {
		return nil, errors.Wrap(errors.Mark(err, errors.ErrEncode), "Event", "Marshal", "msgpack encode")
	}
	return buf.Bytes(), nil
}

// Unmarshal reverses Marshal. Values decode into canonical form.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Event{}, errors.Wrap(errors.Mark(err, errors.ErrDataCorrupted), "Event", "Unmarshal", "msgpack decode")
	}
	// bin stays []byte; sized integers are widened here.
	e.Value = value.Normalize(e.Value)
	if e.Meta == nil {
		e.Meta = map[string]any{}
	} else {
		e.Meta = value.Normalize(e.Meta).(map[string]any)
	}
	return e, nil
}

// Batch packs events into a single batch event. The batch takes the ID and
// ingest timestamp of its first member; every member keeps its own inside
// the batch value.
func Batch(events []Event) Event {
	entries := make([]any, 0, len(events))
	for _, e := range events {
		entries = append(entries, map[string]any{
			"id":        e.ID,
			"ingest_ns": e.IngestNS,
			"value":     e.Value,
			"meta":      mapOrEmpty(e.Meta),
		})
	}

	b := New(0, 0, entries)
	if len(events) > 0 {
		b.ID = events[0].ID
		b.IngestNS = events[0].IngestNS
	}
	b.IsBatch = true
	return b
}

// Unbatch unpacks a batch event into its members. A non-batch event unpacks
// into itself.
func (e Event) Unbatch() ([]Event, error) {
	if !e.IsBatch {
		return []Event{e}, nil
	}

	entries, ok := e.Value.([]any)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("batch value is %T, not a sequence: %w", e.Value, errors.ErrInvalidData),
			"Event", "Unbatch", "batch shape check")
	}

	out := make([]Event, 0, len(entries))
	for i, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("batch entry %d is %T: %w", i, raw, errors.ErrInvalidData),
				"Event", "Unbatch", "batch entry check")
		}
		sub := New(e.ID, e.IngestNS, entry["value"])
		if id, ok := asUint(entry["id"]); ok {
			sub.ID = id
		}
		if ns, ok := asUint(entry["ingest_ns"]); ok {
			sub.IngestNS = ns
		}
		if meta, ok := entry["meta"].(map[string]any); ok {
			sub.Meta = meta
		}
		out = append(out, sub)
	}
	return out, nil
}

func asUint(v any) (uint64, bool) {
	switch t := v.(type) {
	case uint64:
		return t, true
	case int64:
		if t >= 0 {
			return uint64(t), true
		}
	}
	return 0, false
}

// Now returns the current wall clock as nanoseconds since the epoch, the
// unit of IngestNS.
func Now() uint64 {
	return uint64(time.Now().UnixNano())
}
