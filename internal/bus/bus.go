// Package bus is an in-process publish/subscribe primitive: one publisher
// fans out ServerMessage-shaped values to N subscribers, each with a
// bounded inbox and a lag signal when it falls behind (§4.2).
package bus

import "sync"

// inboxSize is the bounded capacity of every subscriber's inbox.
const inboxSize = 100

// Event is the payload type carried by the bus. Producers publish concrete
// events (e.g. ingest.SpanAdded); the bus itself is payload-agnostic.
type Event any

// Result is what Receiver.Recv returns: exactly one of a message, a lag
// count, or Closed is meaningful per call.
type Result struct {
	Msg    Event
	Lag    uint64
	Closed bool
}

// Bus is a multi-producer, multi-consumer broadcast channel. The zero value
// is not usable; construct with New.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Receiver]struct{}
	closed bool
}

// New returns a ready-to-use Bus.
func New() *Bus {
	return &Bus{subs: make(map[*Receiver]struct{})}
}

// Receiver is a single subscriber's view of the bus.
type Receiver struct {
	ch chan Event

	mu     sync.Mutex
	lag    uint64
	closed bool
}

// Subscribe returns a fresh Receiver with a bounded inbox. A Receiver does
// not see messages published before it subscribed.
func (b *Bus) Subscribe() *Receiver {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := &Receiver{ch: make(chan Event, inboxSize)}
	if b.closed {
		r.closed = true
		close(r.ch)
		return r
	}
	b.subs[r] = struct{}{}
	return r
}

// Publish fans msg out to every current subscriber. It never blocks and
// never fails visibly when there are zero subscribers. A subscriber whose
// inbox is full has its lag counter incremented instead of receiving msg:
// tail-drop (the new message is the one dropped, not anything already
// queued), so a later Recv still drains everything queued before the drop.
func (b *Bus) Publish(msg Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for r := range b.subs {
		r.deliver(msg)
	}
}

// Close signals Closed to every current subscriber, exactly once each, and
// to every future Subscribe call.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for r := range b.subs {
		r.mu.Lock()
		alreadyClosed := r.closed
		r.closed = true
		r.mu.Unlock()
		if !alreadyClosed {
			close(r.ch)
		}
	}
	b.subs = make(map[*Receiver]struct{})
}

func (r *Receiver) deliver(msg Event) {
	select {
	case r.ch <- msg:
	default:
		r.mu.Lock()
		r.lag++
		r.mu.Unlock()
	}
}

// Recv blocks until a message, a lag signal, or Closed is available. A
// pending lag signal is always reported before the next queued message, so
// a caller that polls steadily never has its lag counter grow unbounded.
func (r *Receiver) Recv() Result {
	if n := r.takeLag(); n > 0 {
		return Result{Lag: n}
	}

	msg, ok := <-r.ch
	if !ok {
		return Result{Closed: true}
	}
	return Result{Msg: msg}
}

func (r *Receiver) takeLag() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.lag
	r.lag = 0
	return n
}

// Unsubscribe removes r from b. Safe to call even if r was never actually
// registered (e.g. the bus was already closed at Subscribe time).
func (b *Bus) Unsubscribe(r *Receiver) {
	b.mu.Lock()
	delete(b.subs, r)
	b.mu.Unlock()
}
