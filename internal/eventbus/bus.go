package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is a lightweight, in-memory message published on a named topic.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers receive events in publish order.
//   - Slow subscribers may drop events (bounded backpressure); drops are counted.
//     A subscription made with Lossless never drops: events that do not fit the
//     channel wait in a backlog that a per-subscriber pump drains in order.
//   - Late subscribers never see past events.
//
// Data is shared by reference between subscribers, so publishers must treat it as
// immutable once published (pass values, not pointers to state they keep mutating).
type Event struct {
	Topic string
	Time  time.Time
	Data  any
}

// Bus is the broadcast transport: one method to publish, one to subscribe.
// The returned func unsubscribes; it is idempotent and closes the channel.
type Bus interface {
	Publish(e Event)
	Subscribe(topic string, buffer int, opts ...SubscribeOption) (ch <-chan Event, unsubscribe func())
}

type SubscribeOption func(*sub)

// Lossless makes the subscription keep every event instead of dropping when its
// channel is full. Use it for consumers whose input must not be lost (display
// requests); leave it off for consumers that only need the latest state.
func Lossless() SubscribeOption {
	return func(s *sub) { s.lossless = true }
}

// Stats is a best-effort snapshot of bus counters.
type Stats struct {
	Published   uint64
	Delivered   uint64
	Dropped     uint64
	Backlogged  uint64
	Subscribers int
}

// DefaultBuffer is used when Subscribe is called with buffer <= 0.
const DefaultBuffer = 8

// New returns a simple in-memory fanout bus.
//
// It does not own any background goroutines.
func New() *MemBus {
	return &MemBus{subs: map[uint64]*sub{}}
}

// MemBus is the process-wide in-memory Bus implementation.
type MemBus struct {
	// pubMu serialises Publish so every subscriber observes the same order.
	pubMu sync.Mutex

	mu   sync.RWMutex
	subs map[uint64]*sub
	seq  atomic.Uint64

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	backlog   atomic.Uint64
}

type sub struct {
	topic string // "" = every topic
	ch    chan Event

	mu     sync.Mutex
	closed bool

	// lossless only
	lossless bool
	pending  []Event
	wake     chan struct{}
	done     chan struct{}
}

func (b *MemBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	b.published.Add(1)

	// Snapshot subscribers so Publish doesn't hold the registry lock while sending.
	b.mu.RLock()
	targets := make([]*sub, 0, len(b.subs))
	for _, s := range b.subs {
		if s.topic == "" || s.topic == e.Topic {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			continue
		}
		switch {
		case len(s.pending) > 0:
			// Keep order: nothing overtakes the backlog.
			s.pending = append(s.pending, e)
			b.delivered.Add(1)
			b.backlog.Add(1)
		default:
			select {
			case s.ch <- e:
				b.delivered.Add(1)
			default:
				if s.lossless {
					s.pending = append(s.pending, e)
					b.delivered.Add(1)
					b.backlog.Add(1)
					select {
					case s.wake <- struct{}{}:
					default:
					}
				} else {
					b.dropped.Add(1)
				}
			}
		}
		s.mu.Unlock()
	}
}

func (b *MemBus) Subscribe(topic string, buffer int, opts ...SubscribeOption) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &sub{topic: topic, ch: make(chan Event, buffer)}
	for _, o := range opts {
		o(s)
	}
	if s.lossless {
		s.wake = make(chan struct{}, 1)
		s.done = make(chan struct{})
		go s.pump()
	}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()

			s.mu.Lock()
			s.closed = true
			if s.lossless {
				// The pump owns the channel and closes it on exit.
				close(s.done)
			} else {
				close(s.ch)
			}
			s.mu.Unlock()
		})
	}
	return s.ch, unsub
}

// Stats returns the bus counters.
func (b *MemBus) Stats() Stats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return Stats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Backlogged:  b.backlog.Load(),
		Subscribers: n,
	}
}

// pump moves backlogged events into the channel in order. The head stays in the
// backlog until it is sent so Publish never overtakes it.
func (s *sub) pump() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		head := s.pending[0]
		s.mu.Unlock()

		select {
		case s.ch <- head:
		case <-s.done:
			return
		}

		s.mu.Lock()
		s.pending[0] = Event{}
		s.pending = s.pending[1:]
		if len(s.pending) == 0 {
			s.pending = nil
		}
		s.mu.Unlock()
	}
}
