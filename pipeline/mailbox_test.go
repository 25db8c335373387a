package pipeline

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/tremorurl"
)

func TestMailbox(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		mb := NewMailbox(1)
		require.NoError(t, mb.Addr().TrySend(Event{Input: "in"}))
		err := mb.Addr().TrySend(Event{Input: "in"})
		assert.ErrorIs(t, err, errors.ErrMailboxFull)
		assert.ErrorIs(t, err, errors.ErrDelivery)
		assert.Equal(t, 1, mb.Len())
	})

	t.Run("closed", func(t *testing.T) {
		mb := NewMailbox(4)
		mb.Close()
		mb.Close()
		assert.ErrorIs(t, mb.Addr().TrySend(Event{}), errors.ErrMailboxClosed)
		assert.ErrorIs(t, mb.Addr().Send(context.Background(), Event{}), errors.ErrMailboxClosed)
	})

	t.Run("zero addr", func(t *testing.T) {
		var a Addr
		assert.False(t, a.Valid())
		assert.ErrorIs(t, a.TrySend(Event{}), errors.ErrMailboxClosed)
	})

	t.Run("send waits for room", func(t *testing.T) {
		mb := NewMailbox(1)
		require.NoError(t, mb.Addr().TrySend(Event{Input: "a"}))

		go func() {
			time.Sleep(20 * time.Millisecond)
			<-mb.Recv()
		}()
		require.NoError(t, mb.Addr().SendTimeout(Event{Input: "b"}, time.Second))
		msg := <-mb.Recv()
		assert.Equal(t, "b", msg.(Event).Input)
	})

	t.Run("send times out", func(t *testing.T) {
		mb := NewMailbox(0)
		err := mb.Addr().SendTimeout(Event{}, 10*time.Millisecond)
		assert.ErrorIs(t, err, errors.ErrMailboxFull)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func recvEvents(t *testing.T, mb *Mailbox) []Event {
	t.Helper()
	var out []Event
	for {
		select {
		case msg := <-mb.Recv():
			ev, ok := msg.(Event)
			require.True(t, ok, "unexpected message %T", msg)
			out = append(out, ev)
		default:
			return out
		}
	}
}

func mapPointer(v any) uintptr {
	return reflect.ValueOf(v).Pointer()
}

func TestFanout(t *testing.T) {
	a, b, c := NewMailbox(4), NewMailbox(4), NewMailbox(4)
	dests := []Destination{
		{URL: tremorurl.MustParse("/pipeline/a/01/in"), Addr: a.Addr()},
		{URL: tremorurl.MustParse("/pipeline/nope/01"), Addr: c.Addr()},
		{URL: tremorurl.MustParse("/pipeline/b/01/aux"), Addr: b.Addr()},
	}

	original := event.New(1, 10, map[string]any{"k": "v"})
	res := Fanout(dests, original)

	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Failed)
	assert.Empty(t, recvEvents(t, c), "destination without port receives nothing")

	gotA := recvEvents(t, a)
	gotB := recvEvents(t, b)
	require.Len(t, gotA, 1)
	require.Len(t, gotB, 1)

	assert.Equal(t, "in", gotA[0].Input)
	assert.Equal(t, "aux", gotB[0].Input)
	assert.True(t, gotA[0].Event.Equal(original))
	assert.True(t, gotB[0].Event.Equal(original))

	assert.NotEqual(t, mapPointer(original.Value), mapPointer(gotA[0].Event.Value), "non-last destination gets a clone")
	assert.Equal(t, mapPointer(original.Value), mapPointer(gotB[0].Event.Value), "last destination gets the original")

	gotA[0].Event.Value.(map[string]any)["k"] = "changed"
	assert.Equal(t, "v", gotB[0].Event.Value.(map[string]any)["k"])
}

func TestFanoutFailuresAreIsolated(t *testing.T) {
	full := NewMailbox(0)
	closed := NewMailbox(1)
	closed.Close()
	ok := NewMailbox(1)

	dests := []Destination{
		{URL: tremorurl.MustParse("/pipeline/full/01/in"), Addr: full.Addr()},
		{URL: tremorurl.MustParse("/pipeline/closed/01/in"), Addr: closed.Addr()},
		{URL: tremorurl.MustParse("/pipeline/ok/01/in"), Addr: ok.Addr()},
	}

	res := Fanout(dests, event.New(7, 0, "x"))
	assert.Equal(t, 1, res.Delivered)
	require.Len(t, res.Failed, 2)
	assert.ErrorIs(t, res.Failed[0], errors.ErrMailboxFull)
	assert.Equal(t, "full", res.Failed[0].Destination.Artefact)
	assert.ErrorIs(t, res.Failed[1], errors.ErrMailboxClosed)
	assert.Len(t, recvEvents(t, ok), 1)
}

func TestFanoutNoDestinations(t *testing.T) {
	res := Fanout(nil, event.New(0, 0, nil))
	assert.Equal(t, FanoutResult{}, res)
}
