package producer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"pubcast/internal/display"
	"pubcast/internal/eventbus"
	"pubcast/internal/storage"
	"pubcast/internal/variants"
	logx "pubcast/pkg/logx"
)

var (
	ErrEmpty       = errors.New("producer: message has neither text nor media")
	ErrTooLong     = errors.New("producer: message text too long")
	ErrBadMedia    = errors.New("producer: unsupported media payload")
	ErrRateLimited = errors.New("producer: too many posts, slow down")
)

const (
	DefaultMaxTextLen = 100
	DefaultRatePerMin = 6
	DefaultBurst      = 3
	DefaultSender     = "Guest"
	DefaultOrigin     = "web"

	limiterIdleTTL = 30 * time.Minute
)

// Config holds the live-tunable limits.
type Config struct {
	MaxTextLen int
	// RatePerMin is the sustained posts per minute per sender; <= 0 disables limiting.
	RatePerMin int
	Burst      int
}

func (c Config) normalize() Config {
	if c.MaxTextLen <= 0 {
		c.MaxTextLen = DefaultMaxTextLen
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	return c
}

// Input is what a sender surface collected from a person (or a schedule).
type Input struct {
	Sender string
	Origin string
	Text   string
	Media  string
	// ShowText controls the caption over media; nil means show.
	ShowText *bool
	Variant  string
	// Channel names the surface the post came in through, for logs and the audit trail.
	Channel string
	// Client identifies who is posting for rate limiting (remote IP, chat user id).
	// Sender is only a display name the poster picks, so it is used only when Client
	// is empty.
	Client string
	// Duration overrides the variant when positive.
	Duration time.Duration
	// System marks scheduled posts from the process itself: no rate limit and no
	// length cap.
	System bool
}

type senderLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// Composer builds and publishes display requests.
type Composer struct {
	bus      eventbus.Bus
	topic    string
	variants *variants.Store
	store    storage.Store
	log      logx.Logger
	now      func() time.Time

	mu       sync.Mutex
	cfg      Config
	limiters map[string]*senderLimiter
	sweep    time.Time

	lastID atomic.Int64
}

// New creates a composer. store may be nil.
func New(cfg Config, bus eventbus.Bus, topic string, vs *variants.Store, store storage.Store, log logx.Logger) *Composer {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(topic) == "" {
		topic = display.DefaultTopic
	}
	if vs == nil {
		vs = variants.NewStore(nil)
	}
	return &Composer{
		bus:      bus,
		topic:    topic,
		variants: vs,
		store:    store,
		log:      log.With(logx.String("comp", "producer")),
		now:      time.Now,
		cfg:      cfg.normalize(),
		limiters: map[string]*senderLimiter{},
	}
}

// Apply swaps the limits. Existing per-sender buckets are dropped so the new rate
// applies to everyone right away.
func (c *Composer) Apply(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg.normalize()
	c.limiters = map[string]*senderLimiter{}
	c.log.Info("producer limits applied",
		logx.Int("max_text_len", c.cfg.MaxTextLen),
		logx.Int("rate_per_min", c.cfg.RatePerMin),
		logx.Int("burst", c.cfg.Burst),
	)
}

// Limits returns the active limits.
func (c *Composer) Limits() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Publish validates in, builds a request and publishes it on the transport. The
// returned request is exactly what was published.
func (c *Composer) Publish(ctx context.Context, in Input) (display.Request, error) {
	req, err := c.Build(in)
	if err != nil {
		return display.Request{}, err
	}
	if !in.System && !c.allow(limitKey(in, req.Sender)) {
		c.log.Debug("post rate limited",
			logx.String("sender", req.Sender),
			logx.String("client", in.Client),
			logx.String("channel", in.Channel),
		)
		return display.Request{}, ErrRateLimited
	}

	req.ID = c.nextID()
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{Topic: c.topic, Time: c.now(), Data: req})
	}
	c.log.Info("post published",
		logx.Int64("id", req.ID),
		logx.String("kind", string(req.Kind)),
		logx.String("origin", req.Origin),
		logx.String("sender", req.Sender),
		logx.String("channel", in.Channel),
		logx.Int64("duration_ms", req.DurationMS),
	)

	if c.store != nil {
		entry := storage.PostEntry{
			At:         c.now(),
			ID:         req.ID,
			Channel:    in.Channel,
			Origin:     req.Origin,
			Sender:     req.Sender,
			Kind:       string(req.Kind),
			Text:       req.Text,
			MediaBytes: len(req.Media),
			ShowText:   req.ShowTextWithMedia,
			Variant:    strings.TrimSpace(in.Variant),
			DurationMS: req.DurationMS,
		}
		if err := c.store.AppendPost(ctx, entry); err != nil {
			c.log.Warn("audit append failed", logx.Int64("id", req.ID), logx.Err(err))
		}
	}
	return req, nil
}

// Build validates in and returns the request without an ID and without publishing.
func (c *Composer) Build(in Input) (display.Request, error) {
	cfg := c.Limits()

	text := strings.TrimSpace(in.Text)
	media := strings.TrimSpace(in.Media)
	if text == "" && media == "" {
		return display.Request{}, ErrEmpty
	}
	if n := utf8.RuneCountInString(text); !in.System && n > cfg.MaxTextLen {
		return display.Request{}, fmt.Errorf("%w: %d > %d characters", ErrTooLong, n, cfg.MaxTextLen)
	}
	if media != "" {
		if err := checkMedia(media); err != nil {
			return display.Request{}, err
		}
	}

	kind := display.KindText
	if media != "" {
		kind = display.KindImage
	}
	d := in.Duration
	if d <= 0 {
		var err error
		if d, err = c.variants.Load().Resolve(kind, in.Variant); err != nil {
			return display.Request{}, err
		}
	}

	show := true
	if in.ShowText != nil {
		show = *in.ShowText
	}
	sender := strings.TrimSpace(in.Sender)
	if sender == "" {
		sender = DefaultSender
	}
	origin := strings.TrimSpace(in.Origin)
	if origin == "" {
		origin = DefaultOrigin
	}

	return display.Request{
		Kind:              kind,
		Origin:            origin,
		Sender:            sender,
		Text:              text,
		Media:             media,
		ShowTextWithMedia: show,
		DurationMS:        d.Milliseconds(),
	}, nil
}

func checkMedia(media string) error {
	lower := strings.ToLower(media)
	if strings.HasPrefix(lower, "data:image/") {
		if !strings.Contains(media, ",") {
			return fmt.Errorf("%w: malformed data URL", ErrBadMedia)
		}
		return nil
	}
	u, err := url.Parse(media)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: want data:image/... or http(s) URL", ErrBadMedia)
	}
	return nil
}

func limitKey(in Input, sender string) string {
	who := strings.TrimSpace(in.Client)
	if who == "" {
		who = strings.ToLower(sender)
	}
	return in.Channel + "|" + who
}

func (c *Composer) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.RatePerMin <= 0 {
		return true
	}
	now := c.now()
	if now.Sub(c.sweep) > limiterIdleTTL {
		for k, l := range c.limiters {
			if now.Sub(l.seen) > limiterIdleTTL {
				delete(c.limiters, k)
			}
		}
		c.sweep = now
	}

	l := c.limiters[key]
	if l == nil {
		l = &senderLimiter{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(c.cfg.RatePerMin)), c.cfg.Burst)}
		c.limiters[key] = l
	}
	l.seen = now
	return l.lim.AllowN(now, 1)
}

// nextID returns the creation time in unix ms, bumped so IDs strictly increase.
func (c *Composer) nextID() int64 {
	for {
		now := c.now().UnixMilli()
		last := c.lastID.Load()
		id := now
		if id <= last {
			id = last + 1
		}
		if c.lastID.CompareAndSwap(last, id) {
			return id
		}
	}
}
