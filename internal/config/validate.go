package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CronParser is the parser used for promo schedules.
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks every field that is interpreted later so that a bad reload is
// rejected before any component sees it. Errors name the offending key.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := Duration(path, raw)
		add(err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		add(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add(errors.New("logging.file.path: required when file logging is enabled"))
	}

	dur("display.fade_delay", cfg.Display.FadeDelay)
	dur("display.default_duration", cfg.Display.DefaultDuration)
	if cfg.Display.TransportBuffer < 0 {
		add(errors.New("display.transport_buffer: must be >= 0"))
	}

	seen := map[string]bool{}
	for i, name := range cfg.Screens {
		n := strings.TrimSpace(name)
		switch {
		case n == "":
			add(fmt.Errorf("screens[%d]: empty name", i))
		case strings.ContainsAny(n, "/ ?#"):
			add(fmt.Errorf("screens[%d]: invalid name %q", i, name))
		case seen[n]:
			add(fmt.Errorf("screens[%d]: duplicate name %q", i, name))
		}
		seen[n] = true
	}

	if cfg.HTTP.Enabled && strings.TrimSpace(cfg.HTTP.Addr) == "" {
		add(errors.New("http.addr: required when http is enabled"))
	}
	dur("http.read_timeout", cfg.HTTP.ReadTimeout)
	dur("http.write_timeout", cfg.HTTP.WriteTimeout)
	if cfg.HTTP.MaxBodyBytes < 0 {
		add(errors.New("http.max_body_bytes: must be >= 0"))
	}
	if cfg.HTTP.Enabled && cfg.HTTP.Pprof.Enabled && strings.TrimSpace(cfg.HTTP.Pprof.Token) == "" && !isLoopbackAddr(cfg.HTTP.Addr) {
		add(errors.New("http.pprof.token: required when http.addr is not loopback"))
	}

	dur("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(errors.New("telegram.token: required when telegram is enabled (or set " + EnvTelegramToken + ")"))
	}

	if cfg.Producer.MaxTextLen < 0 || cfg.Producer.RatePerMin < 0 || cfg.Producer.Burst < 0 {
		add(errors.New("producer: limits must be >= 0"))
	}

	for kind, list := range map[string][]VariantConfig{"text": cfg.Variants.Text, "image": cfg.Variants.Image} {
		labels := map[string]bool{}
		for i, v := range list {
			path := fmt.Sprintf("variants.%s[%d]", kind, i)
			label := strings.TrimSpace(v.Label)
			if label == "" {
				add(fmt.Errorf("%s.label: required", path))
			} else if labels[label] {
				add(fmt.Errorf("%s.label: duplicate %q", path, label))
			}
			labels[label] = true
			d, err := Duration(path+".duration", v.Duration)
			add(err)
			if err == nil && d <= 0 {
				add(fmt.Errorf("%s.duration: must be > 0", path))
			}
		}
	}

	if cfg.Promo.Enabled {
		if _, err := CronParser.Parse(strings.TrimSpace(cfg.Promo.Schedule)); err != nil {
			add(fmt.Errorf("promo.schedule: %w", err))
		}
		if strings.TrimSpace(cfg.Promo.Text) == "" {
			add(errors.New("promo.text: required when promo is enabled"))
		}
	}
	dur("promo.duration", cfg.Promo.Duration)
	if tz := strings.TrimSpace(cfg.Promo.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("promo.timezone: %w", err))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add(errors.New("storage.path: required for driver " + cfg.Storage.Driver))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	dur("storage.busy_timeout", cfg.Storage.BusyTimeout)

	return errors.Join(errs...)
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
