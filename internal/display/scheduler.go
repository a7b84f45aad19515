package display

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pubcast/internal/eventbus"
	logx "pubcast/pkg/logx"
)

const (
	DefaultTopic           = "pubcast_channel"
	DefaultFadeDelay       = 500 * time.Millisecond
	DefaultDuration        = 10 * time.Second
	DefaultPlaceholderText = "Waiting for messages..."
	DefaultScreen          = "main"
	defaultBuffer          = 256
	defaultInbox           = 64
)

// ErrStopped is returned by Start on a scheduler that has already been stopped.
var ErrStopped = errors.New("display: scheduler stopped")

// Config configures one screen's scheduler. Zero values take the defaults above.
type Config struct {
	Screen          string
	Topic           string
	FadeDelay       time.Duration
	DefaultDuration time.Duration
	PlaceholderText string
	// Buffer is the transport subscription buffer.
	Buffer int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Screen) == "" {
		c.Screen = DefaultScreen
	}
	if strings.TrimSpace(c.Topic) == "" {
		c.Topic = DefaultTopic
	}
	if c.FadeDelay <= 0 {
		c.FadeDelay = DefaultFadeDelay
	}
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = DefaultDuration
	}
	if strings.TrimSpace(c.PlaceholderText) == "" {
		c.PlaceholderText = DefaultPlaceholderText
	}
	if c.Buffer <= 0 {
		c.Buffer = defaultBuffer
	}
	return c
}

// Scheduler drives one screen's slot. All slot state is owned by the goroutine
// started in Start; other goroutines only talk to it through Enqueue and the
// transport, and only read it through Snapshot.
type Scheduler struct {
	cfg Config
	bus eventbus.Bus
	log logx.Logger

	inbox chan Request

	runMu    sync.Mutex
	cancel   context.CancelFunc
	started  bool
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	// loop-owned
	queue      Queue
	processing bool
	current    Request
	visible    bool
	phase      Phase
	fade       *time.Timer
	hold       *time.Timer
	holdUntil  time.Time
	shown      uint64
	seq        uint64

	snapMu sync.RWMutex
	snap   Snapshot
}

// New creates a scheduler. bus may be nil, in which case only Enqueue feeds it and
// no state events are published.
func New(cfg Config, bus eventbus.Bus, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	s := &Scheduler{
		cfg:     cfg,
		bus:     bus,
		log:     log.With(logx.String("screen", cfg.Screen)),
		inbox:   make(chan Request, defaultInbox),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		current: Placeholder(cfg.PlaceholderText),
		visible: true,
		phase:   PhaseIdle,
	}
	s.snap = s.buildSnapshot(time.Now())
	return s
}

func (s *Scheduler) Screen() string { return s.cfg.Screen }

// Start subscribes to the transport and starts the scheduler loop. The slot starts
// out holding the placeholder. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.started {
		select {
		case <-s.quit:
			return ErrStopped
		default:
			return nil
		}
	}
	select {
	case <-s.quit:
		return ErrStopped
	default:
	}

	var (
		events <-chan eventbus.Event
		unsub  = func() {}
	)
	// Subscribe before returning so nothing published after Start is missed.
	if s.bus != nil {
		events, unsub = s.bus.Subscribe(s.cfg.Topic, s.cfg.Buffer, eventbus.Lossless())
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	s.commit(true)
	go s.run(runCtx, events, unsub)

	s.log.Info("scheduler started",
		logx.String("topic", s.cfg.Topic),
		logx.Duration("fade_delay", s.cfg.FadeDelay),
		logx.Duration("default_duration", s.cfg.DefaultDuration),
	)
	return nil
}

// Stop unsubscribes from the transport and cancels any armed timer. Once Stop
// returns, no timer fires and no state changes. Enqueue after Stop is dropped.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.quitOnce.Do(func() { close(s.quit) })

	s.runMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	started := s.started
	s.runMu.Unlock()

	if !started {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue hands a request to the scheduler. It never rejects content; it only
// reports false once the scheduler has stopped (Stop, or the Start context ending).
// Before Start up to 64 requests are buffered and served after Start; further calls
// block until Start or Stop.
func (s *Scheduler) Enqueue(r Request) bool {
	select {
	case <-s.quit:
		return false
	default:
	}
	select {
	case <-s.quit:
		return false
	case s.inbox <- r:
		return true
	}
}

// Snapshot returns a copy of the current renderer-facing state.
func (s *Scheduler) Snapshot() Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// Done is closed once the loop has exited.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

func (s *Scheduler) run(ctx context.Context, events <-chan eventbus.Event, unsub func()) {
	defer close(s.done)
	// Also covers a cancelled Start context, so Enqueue cannot block on a dead loop.
	defer s.quitOnce.Do(func() { close(s.quit) })
	defer func() {
		// Teardown: nothing may fire into a stopped screen.
		unsub()
		s.stopFade()
		s.stopHold()
		s.log.Info("scheduler stopped", logx.Int("queued", s.queue.Len()), logx.Uint64("shown", s.shown))
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case e, ok := <-events:
			if ctx.Err() != nil {
				return
			}
			if !ok {
				// Unsubscribed underneath us; keep serving direct enqueues.
				events = nil
				continue
			}
			r, ok := Decode(e.Data)
			if !ok {
				s.log.Debug("ignoring non-request event", logx.String("topic", e.Topic))
				continue
			}
			s.enqueue(r)

		case r := <-s.inbox:
			if ctx.Err() != nil {
				return
			}
			s.enqueue(r)

		case <-timerC(s.fade):
			if ctx.Err() != nil {
				return
			}
			s.fade = nil
			s.swap()

		case <-timerC(s.hold):
			if ctx.Err() != nil {
				return
			}
			s.hold = nil
			s.holdUntil = time.Time{}
			s.processing = false
			s.advance()
			if !s.processing {
				s.phase = PhaseIdle
				s.commit(true)
			}
		}
	}
}

func (s *Scheduler) enqueue(r Request) {
	s.queue.Push(r)
	s.log.Debug("request enqueued",
		logx.Int64("id", r.ID),
		logx.String("kind", string(r.Kind)),
		logx.String("origin", r.Origin),
		logx.Int("queue_len", s.queue.Len()),
		logx.Bool("processing", s.processing),
	)
	if s.processing {
		// The pending item waits; the current fade/hold is left untouched.
		s.commit(false)
		return
	}
	s.stopHold()
	s.advance()
}

// advance starts one protocol run if the queue has work and no run is in progress.
func (s *Scheduler) advance() {
	if s.processing || s.queue.Len() == 0 {
		return
	}
	s.processing = true
	s.visible = false
	s.phase = PhaseFadingOut
	s.stopFade()
	s.fade = time.NewTimer(s.cfg.FadeDelay)
	s.commit(true)
}

// swap runs once the fade-out delay has elapsed.
func (s *Scheduler) swap() {
	next, ok := s.queue.Pop()
	if !ok {
		// Nothing to show: keep the last content on screen.
		s.processing = false
		s.visible = true
		s.phase = PhaseIdle
		s.commit(true)
		return
	}

	s.stopHold()
	d := next.Duration(s.cfg.DefaultDuration)
	s.current = next
	s.visible = true
	s.phase = PhaseActive
	s.shown++
	s.hold = time.NewTimer(d)
	s.holdUntil = time.Now().Add(d)
	s.commit(true)

	s.log.Debug("now showing",
		logx.Int64("id", next.ID),
		logx.String("origin", next.Origin),
		logx.Duration("hold", d),
		logx.Int("queue_len", s.queue.Len()),
	)
}

func (s *Scheduler) stopFade() {
	if s.fade != nil {
		s.fade.Stop()
		s.fade = nil
	}
}

func (s *Scheduler) stopHold() {
	if s.hold != nil {
		s.hold.Stop()
		s.hold = nil
		s.holdUntil = time.Time{}
	}
}

// commit refreshes the readable snapshot and, when broadcast is set, publishes it.
func (s *Scheduler) commit(broadcast bool) {
	now := time.Now()
	s.snapMu.Lock()
	if broadcast {
		s.seq++
	}
	snap := s.buildSnapshot(now)
	s.snap = snap
	s.snapMu.Unlock()

	if broadcast && s.bus != nil {
		s.bus.Publish(eventbus.Event{Topic: StateTopic(s.cfg.Screen), Time: now, Data: snap})
	}
}

func (s *Scheduler) buildSnapshot(now time.Time) Snapshot {
	return Snapshot{
		Screen:     s.cfg.Screen,
		Seq:        s.seq,
		Phase:      s.phase,
		Current:    s.current,
		Visible:    s.visible,
		Processing: s.processing,
		QueueLen:   s.queue.Len(),
		Shown:      s.shown,
		HoldUntil:  s.holdUntil,
		At:         now,
	}
}

// timerC returns t's channel, or nil (blocks forever in select) when t is nil.
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
