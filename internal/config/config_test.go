package config

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	p := writeFile(t, t.TempDir(), "pubcast.yaml", `
display:
  fade_delay: 250ms
screens: [lobby, bar]
variants:
  text:
    - { label: quick, duration: 5s }
`)
	m := NewManager(p)
	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, "250ms", cfg.Display.FadeDelay)
	assert.Equal(t, "10s", cfg.Display.DefaultDuration, "omitted keys keep defaults")
	assert.Equal(t, "pubcast_channel", cfg.Display.Topic)
	assert.Equal(t, []string{"lobby", "bar"}, cfg.Screens)
	assert.Len(t, cfg.Variants.Text, 1)
	assert.Len(t, cfg.Variants.Image, 1)
	assert.True(t, cfg.Logging.Console)
	assert.Same(t, cfg, m.Get())
}

func TestLoadEmptyFileIsDefaults(t *testing.T) {
	cfg, err := NewManager(writeFile(t, t.TempDir(), "pubcast.json", "")).Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Display, cfg.Display)
}

func TestDurationOr(t *testing.T) {
	d, err := DurationOr("x", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = DurationOr("x", "250ms", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	_, err = DurationOr("display.fade_delay", "-1s", time.Second)
	require.ErrorContains(t, err, "display.fade_delay")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	p := writeFile(t, t.TempDir(), "pubcast.yaml", "display:\n  fade: 1s\n")
	_, err := NewManager(p).Load()
	assert.Error(t, err)
}

func TestLoadJSONRejectsTrailingData(t *testing.T) {
	p := writeFile(t, t.TempDir(), "pubcast.json", `{"screens":["a"]}{"screens":["b"]}`)
	_, err := NewManager(p).Load()
	assert.Error(t, err)
}

func TestTelegramTokenFromEnv(t *testing.T) {
	t.Setenv(EnvTelegramToken, "123:abc")
	p := writeFile(t, t.TempDir(), "pubcast.yaml", "telegram: { enabled: true }\n")
	cfg, err := NewManager(p).Load()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errSub string
	}{
		{name: "defaults ok", mutate: func(c *Config) {}},
		{name: "bad fade delay", mutate: func(c *Config) { c.Display.FadeDelay = "soon" }, errSub: "display.fade_delay"},
		{name: "negative duration", mutate: func(c *Config) { c.Display.DefaultDuration = "-1s" }, errSub: "display.default_duration"},
		{name: "duplicate screen", mutate: func(c *Config) { c.Screens = []string{"a", "a"} }, errSub: "duplicate"},
		{name: "bad screen name", mutate: func(c *Config) { c.Screens = []string{"a/b"} }, errSub: "screens[0]"},
		{name: "zero variant", mutate: func(c *Config) { c.Variants.Text = []VariantConfig{{Label: "x", Duration: "0s"}} }, errSub: "variants.text[0].duration"},
		{name: "bad cron", mutate: func(c *Config) { c.Promo = PromoConfig{Enabled: true, Schedule: "every day", Text: "x"} }, errSub: "promo.schedule"},
		{name: "promo needs text", mutate: func(c *Config) { c.Promo.Enabled = true }, errSub: "promo.text"},
		{name: "bad timezone", mutate: func(c *Config) { c.Promo.Timezone = "Mars/Base" }, errSub: "promo.timezone"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "redis" }, errSub: "storage.driver"},
		{name: "telegram needs token", mutate: func(c *Config) { c.Telegram.Enabled = true }, errSub: "telegram.token"},
		{name: "pprof on loopback", mutate: func(c *Config) { c.HTTP.Pprof.Enabled = true }},
		{name: "public pprof needs token", mutate: func(c *Config) {
			c.HTTP.Addr = "0.0.0.0:8080"
			c.HTTP.Pprof.Enabled = true
		}, errSub: "http.pprof.token"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, errSub: "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if tt.errSub == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestSummarizeChange(t *testing.T) {
	a := Default()
	b := Default()
	b.Producer.Burst = 9
	b.HTTP.Addr = ":9090"
	b.Telegram.Token = "secret"

	changed, attrs, restart := SummarizeChange(&a, &b)
	assert.Equal(t, []string{"http", "producer", "telegram"}, changed)
	assert.Equal(t, []string{"http", "telegram"}, restart)
	assert.NotEmpty(t, attrs)

	changed, _, restart = SummarizeChange(&a, &a)
	assert.Empty(t, changed)
	assert.Empty(t, restart)
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "pubcast.yaml", "producer: { burst: 2 }\n")
	m := NewManager(p)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ok, err := m.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "unchanged content is not republished")

	writeFile(t, dir, "pubcast.yaml", "producer: { burst: 5 }\n")
	ok, err = m.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	select {
	case cfg := <-ch:
		assert.Equal(t, 5, cfg.Producer.Burst)
	case <-time.After(time.Second):
		t.Fatal("no config published")
	}

	writeFile(t, dir, "pubcast.yaml", "display: { fade_delay: nope }\n")
	_, err = m.Reload(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 5, m.Get().Producer.Burst, "rejected reload keeps the old config")
}

func TestWatchPicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "pubcast.yaml", "producer: { burst: 1 }\n")
	m := NewManager(p)
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	burst := 2
	for {
		select {
		case cfg := <-ch:
			assert.GreaterOrEqual(t, cfg.Producer.Burst, 2)
			return
		case <-tick.C:
			// Rewrite until the watcher is up and sees an edit.
			writeFile(t, dir, "pubcast.yaml", "producer: { burst: "+strconv.Itoa(burst)+" }\n")
			burst++
		case <-deadline:
			t.Fatal("watch did not publish")
		}
	}
}
