package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/tremorurl"
)

// Msg is a message accepted by a pipeline (or offramp) mailbox.
type Msg interface {
	isMsg()
}

// Event delivers an event to an input port.
type Event struct {
	Input string
	Event event.Event
}

// Connect attaches destinations to an output port.
type Connect struct {
	Port         string
	Destinations []Destination
}

// Disconnect detaches the destination identified by ID from an output port.
// Ack, when set, is closed once the destination is gone.
type Disconnect struct {
	Port string
	ID   tremorurl.URL
	Ack  chan<- struct{}
}

func (Event) isMsg()      {}
func (Connect) isMsg()    {}
func (Disconnect) isMsg() {}

// Destination is a downstream mailbox together with the URL naming it.
// The URL's port is the input port the receiver delivers to.
type Destination struct {
	URL  tremorurl.URL
	Addr Addr
}

// Mailbox is a bounded message queue. Closing it never closes the
// underlying channel, so late senders get ErrMailboxClosed instead of a
// panic.
type Mailbox struct {
	ch        chan Msg
	done      chan struct{}
	closeOnce sync.Once
}

// NewMailbox creates a mailbox holding up to capacity messages
func NewMailbox(capacity int) *Mailbox {
	if capacity < 0 {
		capacity = 0
	}
	return &Mailbox{
		ch:   make(chan Msg, capacity),
		done: make(chan struct{}),
	}
}

// Addr returns the sending side of the mailbox
func (m *Mailbox) Addr() Addr {
	return Addr{mb: m}
}

// Recv returns the receiving channel
func (m *Mailbox) Recv() <-chan Msg {
	return m.ch
}

// Done is closed once the mailbox is closed
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Close stops the mailbox from accepting messages. Idempotent.
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

// Len returns the number of queued messages
func (m *Mailbox) Len() int {
	return len(m.ch)
}

// Cap returns the mailbox capacity
func (m *Mailbox) Cap() int {
	return cap(m.ch)
}

// Addr is the sending handle of a mailbox. The zero Addr is closed.
type Addr struct {
	mb *Mailbox
}

// TrySend enqueues msg without blocking. It returns errors.ErrMailboxFull
// when the mailbox is at capacity and errors.ErrMailboxClosed when it has
// been closed.
func (a Addr) TrySend(msg Msg) error {
	if a.mb == nil {
		return errors.ErrMailboxClosed
	}
	select {
	case <-a.mb.done:
		return errors.ErrMailboxClosed
	default:
	}

	select {
	case a.mb.ch <- msg:
		return nil
	default:
		return errors.ErrMailboxFull
	}
}

// Send enqueues msg, waiting for room until ctx is done
func (a Addr) Send(ctx context.Context, msg Msg) error {
	if a.mb == nil {
		return errors.ErrMailboxClosed
	}
	select {
	case <-a.mb.done:
		return errors.ErrMailboxClosed
	default:
	}

	select {
	case a.mb.ch <- msg:
		return nil
	case <-a.mb.done:
		return errors.ErrMailboxClosed
	case <-ctx.Done():
		return errors.Mark(ctx.Err(), errors.ErrMailboxFull)
	}
}

// SendTimeout enqueues msg, waiting at most d for room
func (a Addr) SendTimeout(msg Msg, d time.Duration) error {
	if d <= 0 {
		return a.TrySend(msg)
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return a.Send(ctx, msg)
}

// Valid reports whether the address refers to a mailbox
func (a Addr) Valid() bool {
	return a.mb != nil
}
