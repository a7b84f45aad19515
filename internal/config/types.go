package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("500ms", "10s", "1m") and are validated by Validate.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Display  DisplayConfig  `json:"display"`
	Screens  []string       `json:"screens"`
	HTTP     HTTPConfig     `json:"http"`
	Telegram TelegramConfig `json:"telegram"`
	Producer ProducerConfig `json:"producer"`
	Variants VariantsConfig `json:"variants"`
	Promo    PromoConfig    `json:"promo"`
	Storage  StorageConfig  `json:"storage"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DisplayConfig is shared by every screen's scheduler.
type DisplayConfig struct {
	Topic           string `json:"topic"`
	FadeDelay       string `json:"fade_delay"`
	DefaultDuration string `json:"default_duration"`
	PlaceholderText string `json:"placeholder_text"`
	TransportBuffer int    `json:"transport_buffer"`
}

// HTTPConfig controls the post/screen HTTP surface.
//
// Prefer binding to localhost and fronting it with a reverse proxy; there is no
// authentication on the post endpoint.
type HTTPConfig struct {
	Enabled      bool        `json:"enabled"`
	Addr         string      `json:"addr"`
	ReadTimeout  string      `json:"read_timeout,omitempty"`
	WriteTimeout string      `json:"write_timeout,omitempty"`
	MaxBodyBytes int64       `json:"max_body_bytes,omitempty"`
	Pprof        PprofConfig `json:"pprof"`
}

// PprofConfig mounts the Go profiler on the HTTP listener.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Prefix  string `json:"prefix,omitempty"`
	Token   string `json:"token,omitempty"`
}

type TelegramConfig struct {
	Enabled bool `json:"enabled"`
	// Token may be left empty and supplied via PUBCAST_TELEGRAM_TOKEN.
	Token          string  `json:"token"`
	PollTimeout    string  `json:"poll_timeout"`
	AllowedChatIDs []int64 `json:"allowed_chat_ids,omitempty"`
}

type ProducerConfig struct {
	MaxTextLen int `json:"max_text_len"`
	RatePerMin int `json:"rate_per_min"`
	Burst      int `json:"burst"`
}

type VariantConfig struct {
	Label    string `json:"label"`
	Duration string `json:"duration"`
}

type VariantsConfig struct {
	Text  []VariantConfig `json:"text"`
	Image []VariantConfig `json:"image"`
}

// PromoConfig schedules a recurring system announcement.
//
// Schedule accepts 5 or 6 field cron specs and descriptors ("@every 10m", "@hourly").
type PromoConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
	Text     string `json:"text"`
	Subtext  string `json:"subtext,omitempty"`
	Duration string `json:"duration,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig controls the optional post audit trail.
//
// Example:
//
//	storage: { driver: sqlite, path: ./data/pubcast.db }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	Retain      int    `json:"retain,omitempty"`       // sqlite
}

// Default returns the configuration used for every omitted key.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Console: true, File: LoggingFile{Path: "./pubcast.log"}},
		Display: DisplayConfig{
			Topic:           "pubcast_channel",
			FadeDelay:       "500ms",
			DefaultDuration: "10s",
			PlaceholderText: "Waiting for messages...",
			TransportBuffer: 256,
		},
		Screens: []string{"main"},
		HTTP: HTTPConfig{
			Enabled:      true,
			Addr:         "127.0.0.1:8080",
			ReadTimeout:  "15s",
			WriteTimeout: "15s",
			MaxBodyBytes: 8 << 20,
		},
		Telegram: TelegramConfig{PollTimeout: "10s"},
		Producer: ProducerConfig{MaxTextLen: 100, RatePerMin: 6, Burst: 3},
		Variants: VariantsConfig{
			Text:  []VariantConfig{{Label: "10s", Duration: "10s"}},
			Image: []VariantConfig{{Label: "10s", Duration: "10s"}},
		},
		Promo:   PromoConfig{Schedule: "@every 10m", Duration: "10s"},
		Storage: StorageConfig{Driver: "none", Path: "./data/pubcast.db", BusyTimeout: "5s"},
	}
}
