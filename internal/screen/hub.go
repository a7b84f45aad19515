package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pubcast/internal/display"
	"pubcast/internal/eventbus"
	"pubcast/internal/render"
	logx "pubcast/pkg/logx"
)

// Hub owns the schedulers, one per screen name.
type Hub struct {
	bus    eventbus.Bus
	log    logx.Logger
	order  []string
	byName map[string]*display.Scheduler

	mu      sync.Mutex
	started bool
}

// NewHub creates a scheduler per name, each configured from base with its own
// screen name. Empty and duplicate names are skipped; no names means one default
// screen.
func NewHub(base display.Config, names []string, bus eventbus.Bus, log logx.Logger) *Hub {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &Hub{bus: bus, log: log.With(logx.String("comp", "screens")), byName: map[string]*display.Scheduler{}}
	if len(names) == 0 {
		names = []string{display.DefaultScreen}
	}
	for _, n := range names {
		if n == "" || h.byName[n] != nil {
			continue
		}
		cfg := base
		cfg.Screen = n
		h.byName[n] = display.New(cfg, bus, log)
		h.order = append(h.order, n)
	}
	return h
}

// Start starts every scheduler. If one fails the ones already started are stopped.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}
	for i, n := range h.order {
		if err := h.byName[n].Start(ctx); err != nil {
			for _, prev := range h.order[:i] {
				_ = h.byName[prev].Stop(ctx)
			}
			return fmt.Errorf("start screen %s: %w", n, err)
		}
	}
	h.started = true
	h.log.Info("screens started", logx.Int("count", len(h.order)))
	return nil
}

// Stop stops every scheduler and waits for their loops, bounded by ctx.
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	for _, n := range h.order {
		if err := h.byName[n].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop screen %s: %w", n, err))
		}
	}
	h.started = false
	return errors.Join(errs...)
}

// Names returns the screen names in configured order.
func (h *Hub) Names() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

func (h *Hub) Scheduler(name string) (*display.Scheduler, bool) {
	s, ok := h.byName[name]
	return s, ok
}

// Frame returns what the named screen should be painting right now.
func (h *Hub) Frame(name string) (render.Frame, bool) {
	s, ok := h.byName[name]
	if !ok {
		return render.Frame{}, false
	}
	return render.FrameOf(s.Snapshot()), true
}
