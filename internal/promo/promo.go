// Package promo publishes a recurring announcement (the venue's promo line) to the
// screens on a cron schedule.
package promo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"pubcast/internal/display"
	"pubcast/internal/producer"
	logx "pubcast/pkg/logx"
)

const (
	Channel = "promo"
	Sender  = "Promo"
)

type Config struct {
	Enabled  bool
	Schedule string
	Text     string
	Subtext  string
	Duration time.Duration
	Timezone string
}

// Publisher is the producer promos go through.
type Publisher interface {
	Publish(ctx context.Context, in producer.Input) (display.Request, error)
}

type Service struct {
	pub    Publisher
	log    logx.Logger
	parser cron.Parser

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	runCtx  context.Context
	running bool

	fired atomic.Uint64
}

func New(cfg Config, pub Publisher, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		pub:    pub,
		log:    log.With(logx.String("comp", "promo")),
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		cfg:    cfg,
	}
}

// Start registers the schedule. A disabled config starts nothing but Apply can
// enable it later.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.runCtx = ctx
	if err := s.scheduleLocked(); err != nil {
		return err
	}
	s.running = true
	return nil
}

// Stop stops the cron and waits for a running job, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.running = false
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply swaps the config and re-registers the job when running.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if !s.running {
		return nil
	}
	if s.c != nil {
		s.c.Stop()
		s.c = nil
	}
	return s.scheduleLocked()
}

func (s *Service) scheduleLocked() error {
	cfg := s.cfg
	if !cfg.Enabled {
		s.log.Debug("promo disabled")
		return nil
	}
	if strings.TrimSpace(cfg.Text) == "" {
		return errors.New("promo: text is empty")
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return err
		}
		loc = l
	}

	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	ctx := s.runCtx
	if _, err := c.AddFunc(strings.TrimSpace(cfg.Schedule), func() {
		if _, err := s.Fire(ctx); err != nil {
			s.log.Warn("promo publish failed", logx.Err(err))
		}
	}); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("promo scheduled", logx.String("schedule", cfg.Schedule), logx.String("tz", loc.String()))
	return nil
}

// Fire publishes the promo right now.
func (s *Service) Fire(ctx context.Context) (display.Request, error) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	text := strings.TrimSpace(cfg.Text)
	if sub := strings.TrimSpace(cfg.Subtext); sub != "" {
		text += "\n" + sub
	}
	req, err := s.pub.Publish(ctx, producer.Input{
		Sender:   Sender,
		Origin:   display.OriginSystem,
		Text:     text,
		Duration: cfg.Duration,
		Channel:  Channel,
		System:   true,
	})
	if err == nil {
		s.fired.Add(1)
	}
	return req, err
}

// Fired reports how many promos were published.
func (s *Service) Fired() uint64 { return s.fired.Load() }
