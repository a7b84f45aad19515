package app

import (
	"fmt"
	"time"

	"pubcast/internal/config"
	"pubcast/internal/display"
	"pubcast/internal/observability/pprof"
	"pubcast/internal/producer"
	"pubcast/internal/promo"
	"pubcast/internal/screen"
	"pubcast/internal/storage"
	"pubcast/internal/transport/telegram"
	"pubcast/internal/variants"
	logx "pubcast/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapDisplayConfig(cfg *config.Config) (display.Config, error) {
	fade, err := config.DurationOr("display.fade_delay", cfg.Display.FadeDelay, display.DefaultFadeDelay)
	if err != nil {
		return display.Config{}, err
	}
	def, err := config.DurationOr("display.default_duration", cfg.Display.DefaultDuration, display.DefaultDuration)
	if err != nil {
		return display.Config{}, err
	}
	return display.Config{
		Topic:           cfg.Display.Topic,
		FadeDelay:       fade,
		DefaultDuration: def,
		PlaceholderText: cfg.Display.PlaceholderText,
		Buffer:          cfg.Display.TransportBuffer,
	}, nil
}

func mapServerConfig(cfg *config.Config) (screen.Config, error) {
	rt, err := config.DurationOr("http.read_timeout", cfg.HTTP.ReadTimeout, 15*time.Second)
	if err != nil {
		return screen.Config{}, err
	}
	wt, err := config.DurationOr("http.write_timeout", cfg.HTTP.WriteTimeout, 15*time.Second)
	if err != nil {
		return screen.Config{}, err
	}
	return screen.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  rt,
		WriteTimeout: wt,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Pprof: pprof.Config{
			Enabled: cfg.HTTP.Pprof.Enabled,
			Prefix:  cfg.HTTP.Pprof.Prefix,
			Token:   cfg.HTTP.Pprof.Token,
		},
	}, nil
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	pt, err := config.DurationOr("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pt,
		AllowedChatIDs: cfg.Telegram.AllowedChatIDs,
	}, nil
}

func mapProducerConfig(cfg *config.Config) producer.Config {
	return producer.Config{
		MaxTextLen: cfg.Producer.MaxTextLen,
		RatePerMin: cfg.Producer.RatePerMin,
		Burst:      cfg.Producer.Burst,
	}
}

func mapCatalog(cfg *config.Config) (*variants.Catalog, error) {
	conv := func(kind string, in []config.VariantConfig) ([]variants.Variant, error) {
		out := make([]variants.Variant, 0, len(in))
		for i, v := range in {
			d, err := config.Duration(fmt.Sprintf("variants.%s[%d].duration", kind, i), v.Duration)
			if err != nil {
				return nil, err
			}
			out = append(out, variants.Variant{Label: v.Label, Duration: d})
		}
		return out, nil
	}
	text, err := conv("text", cfg.Variants.Text)
	if err != nil {
		return nil, err
	}
	image, err := conv("image", cfg.Variants.Image)
	if err != nil {
		return nil, err
	}
	def, err := config.DurationOr("display.default_duration", cfg.Display.DefaultDuration, display.DefaultDuration)
	if err != nil {
		return nil, err
	}
	return variants.NewCatalog(text, image, def), nil
}

func mapPromoConfig(cfg *config.Config) (promo.Config, error) {
	d, err := config.Duration("promo.duration", cfg.Promo.Duration)
	if err != nil {
		return promo.Config{}, err
	}
	return promo.Config{
		Enabled:  cfg.Promo.Enabled,
		Schedule: cfg.Promo.Schedule,
		Text:     cfg.Promo.Text,
		Subtext:  cfg.Promo.Subtext,
		Duration: d,
		Timezone: cfg.Promo.Timezone,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	bt, err := config.Duration("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: bt,
		Retain:      cfg.Storage.Retain,
	}, nil
}
