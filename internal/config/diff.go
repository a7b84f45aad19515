package config

import (
	"reflect"
	"sort"
	"strings"

	logx "pubcast/pkg/logx"
)

// liveSections are applied without a restart.
var liveSections = map[string]bool{
	"logging":  true,
	"producer": true,
	"variants": true,
	"promo":    true,
}

// SummarizeChange returns the changed top-level sections, safe attrs for the reload
// log line (never the telegram token) and the subset of changed sections that only
// take effect after a restart.
func SummarizeChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	mark := func(section string, fields ...logx.Field) {
		changed = append(changed, section)
		attrs = append(attrs, fields...)
		if !liveSections[section] {
			restart = append(restart, section)
		}
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Display, newCfg.Display) {
		mark("display",
			logx.String("display.fade_delay", newCfg.Display.FadeDelay),
			logx.String("display.default_duration", newCfg.Display.DefaultDuration),
		)
	}
	if !reflect.DeepEqual(oldCfg.Screens, newCfg.Screens) {
		mark("screens", logx.Int("screens.count", len(newCfg.Screens)))
	}
	if !reflect.DeepEqual(oldCfg.HTTP, newCfg.HTTP) {
		mark("http",
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", strings.TrimSpace(newCfg.HTTP.Addr)),
			logx.Bool("http.pprof_enabled", newCfg.HTTP.Pprof.Enabled),
		)
	}

	oT, nT := oldCfg.Telegram, newCfg.Telegram
	tokenChanged := oT.Token != nT.Token
	oT.Token, nT.Token = "", ""
	if tokenChanged || !reflect.DeepEqual(oT, nT) {
		mark("telegram",
			logx.Bool("telegram.enabled", nT.Enabled),
			logx.Bool("telegram.token_changed", tokenChanged),
			logx.Int("telegram.allowed_chats", len(nT.AllowedChatIDs)),
		)
	}

	if oldCfg.Producer != newCfg.Producer {
		mark("producer",
			logx.Int("producer.max_text_len", newCfg.Producer.MaxTextLen),
			logx.Int("producer.rate_per_min", newCfg.Producer.RatePerMin),
			logx.Int("producer.burst", newCfg.Producer.Burst),
		)
	}
	if !reflect.DeepEqual(oldCfg.Variants, newCfg.Variants) {
		mark("variants",
			logx.Int("variants.text", len(newCfg.Variants.Text)),
			logx.Int("variants.image", len(newCfg.Variants.Image)),
		)
	}
	if oldCfg.Promo != newCfg.Promo {
		mark("promo",
			logx.Bool("promo.enabled", newCfg.Promo.Enabled),
			logx.String("promo.schedule", newCfg.Promo.Schedule),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		mark("storage", logx.String("storage.driver", newCfg.Storage.Driver))
	}

	sort.Strings(changed)
	sort.Strings(restart)
	return changed, attrs, restart
}
