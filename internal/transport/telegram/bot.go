package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"pubcast/internal/display"
	"pubcast/internal/producer"
	rtsup "pubcast/internal/runtime/supervisor"
	"pubcast/internal/variants"
	logx "pubcast/pkg/logx"
)

const (
	Channel = "telegram"
	Origin  = "telegram"

	maxPhotoBytes = 5 << 20
	handleTimeout = 20 * time.Second
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// AllowedChatIDs restricts who may post; empty allows every chat.
	AllowedChatIDs []int64
	// Offline skips the getMe call on creation (tests).
	Offline bool
}

// Publisher is the producer the bot posts through.
type Publisher interface {
	Publish(ctx context.Context, in producer.Input) (display.Request, error)
}

type Bot struct {
	cfg      Config
	log      logx.Logger
	pub      Publisher
	variants *variants.Store
	allowed  map[int64]bool

	bot *tele.Bot

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor
}

func New(cfg Config, pub Publisher, vs *variants.Store, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if pub == nil {
		return nil, errors.New("telegram: publisher is nil")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if vs == nil {
		vs = variants.NewStore(nil)
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	b := &Bot{
		cfg:      cfg,
		log:      log.With(logx.String("comp", "telegram")),
		pub:      pub,
		variants: vs,
		allowed:  map[int64]bool{},
	}
	for _, id := range cfg.AllowedChatIDs {
		b.allowed[id] = true
	}

	tb, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: timeout},
		Offline: cfg.Offline,
		OnError: func(err error, c tele.Context) {
			b.log.Warn("telegram handler error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	b.bot = tb
	b.registerHandlers()
	return b, nil
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.onHelp)
	b.bot.Handle("/help", b.onHelp)
	b.bot.Handle("/variants", b.onVariants)
	b.bot.Handle("/post", b.onPost)
	b.bot.Handle(tele.OnPhoto, b.onPhoto)
}

// Start begins long polling. Calling Start twice is a no-op.
func (b *Bot) Start(ctx context.Context) error {
	b.runMu.Lock()
	if b.running {
		b.runMu.Unlock()
		return nil
	}
	b.running = true
	b.sup = rtsup.New(ctx, rtsup.WithLogger(b.log), rtsup.WithCancelOnError(false))
	sup := b.sup
	b.runMu.Unlock()

	if !b.cfg.Offline {
		if err := b.bot.SetCommands(commandMenu()); err != nil {
			b.log.Warn("menu commands update failed", logx.Err(err))
		}
	}

	sup.Go("telebot.stop_on_cancel", func(c context.Context) error {
		<-c.Done()
		b.bot.Stop()
		return nil
	})

	// bot.Start blocks until Stop; if it ever returns while we are still running it
	// is restarted.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		b.log.Info("polling started")
		b.bot.Start()
		b.log.Info("polling stopped")
		if c.Err() != nil {
			return nil
		}
		return errors.New("poller exited")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithPublishFirstError(true),
	)
	return nil
}

// Stop stops polling. It never blocks shutdown for longer than a short grace
// window even if a long poll is still in flight.
func (b *Bot) Stop(ctx context.Context) error {
	b.runMu.Lock()
	sup := b.sup
	b.sup = nil
	wasRunning := b.running
	b.running = false
	b.runMu.Unlock()

	if !wasRunning || sup == nil {
		return nil
	}
	b.log.Info("stopping")

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := sup.Stop(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			b.log.Warn("telegram stop timed out", logx.Err(err))
			return nil
		}
		b.log.Debug("telegram stopped with error", logx.Err(err))
	}
	return nil
}

// Supervisor returns the polling supervisor, or nil when stopped.
func (b *Bot) Supervisor() *rtsup.Supervisor {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	return b.sup
}

func commandMenu() []tele.Command {
	return []tele.Command{
		{Text: "post", Description: "Show a message on the screens"},
		{Text: "variants", Description: "List display durations"},
		{Text: "help", Description: "How to post"},
	}
}
