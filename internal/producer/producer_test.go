package producer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubcast/internal/display"
	"pubcast/internal/eventbus"
	"pubcast/internal/storage"
	"pubcast/internal/variants"
	logx "pubcast/pkg/logx"
)

func testCatalog() *variants.Store {
	return variants.NewStore(variants.NewCatalog(
		[]variants.Variant{{Label: "10s", Duration: 10 * time.Second}, {Label: "30s", Duration: 30 * time.Second}},
		[]variants.Variant{{Label: "20s", Duration: 20 * time.Second}},
		0,
	))
}

func boolp(b bool) *bool { return &b }

func TestBuildValidation(t *testing.T) {
	c := New(Config{MaxTextLen: 5}, nil, "", testCatalog(), nil, logx.Nop())

	tests := []struct {
		name string
		in   Input
		err  error
	}{
		{name: "empty", in: Input{Text: "   "}, err: ErrEmpty},
		{name: "too long", in: Input{Text: "abcdef"}, err: ErrTooLong},
		{name: "runes not bytes", in: Input{Text: "ñññññ"}},
		{name: "bad scheme", in: Input{Media: "ftp://x/y.png"}, err: ErrBadMedia},
		{name: "data url without comma", in: Input{Media: "data:image/png;base64"}, err: ErrBadMedia},
		{name: "data url", in: Input{Media: "data:image/png;base64,AAAA"}},
		{name: "https url", in: Input{Media: "https://example.org/a.jpg"}},
		{name: "unknown variant", in: Input{Text: "hi", Variant: "99s"}, err: variants.ErrUnknownVariant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Build(tt.in)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestBuildFillsRequest(t *testing.T) {
	c := New(Config{}, nil, "", testCatalog(), nil, logx.Nop())

	r, err := c.Build(Input{Text: "  hello  ", Variant: "30s"})
	require.NoError(t, err)
	assert.Equal(t, display.KindText, r.Kind)
	assert.Equal(t, "hello", r.Text)
	assert.Equal(t, DefaultSender, r.Sender)
	assert.Equal(t, DefaultOrigin, r.Origin)
	assert.True(t, r.ShowTextWithMedia)
	assert.Equal(t, int64(30000), r.DurationMS)

	r, err = c.Build(Input{Media: "https://x.org/p.png", Text: "cap", ShowText: boolp(false), Sender: "ann", Origin: "telegram"})
	require.NoError(t, err)
	assert.Equal(t, display.KindImage, r.Kind)
	assert.False(t, r.ShowTextWithMedia)
	assert.Equal(t, int64(20000), r.DurationMS, "first image variant is the default")
	assert.Equal(t, "ann", r.Sender)
	assert.Equal(t, "telegram", r.Origin)
}

func TestPublishDeliversOnTopicWithIncreasingIDs(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe("screens", 16)
	defer unsub()

	c := New(Config{}, bus, "screens", testCatalog(), nil, logx.Nop())
	fixed := time.UnixMilli(1_700_000_000_000)
	c.now = func() time.Time { return fixed }

	var ids []int64
	for i := 0; i < 3; i++ {
		r, err := c.Publish(context.Background(), Input{Text: "m", System: true})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{1_700_000_000_000, 1_700_000_000_001, 1_700_000_000_002}, ids)

	for _, want := range ids {
		select {
		case e := <-ch:
			r, ok := display.Decode(e.Data)
			require.True(t, ok)
			assert.Equal(t, want, r.ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPublishRateLimitsPerSender(t *testing.T) {
	c := New(Config{RatePerMin: 1, Burst: 2}, nil, "", testCatalog(), nil, logx.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Publish(ctx, Input{Sender: "ann", Text: "x", Channel: "http"})
		require.NoError(t, err)
	}
	_, err := c.Publish(ctx, Input{Sender: "ANN", Text: "x", Channel: "http"})
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = c.Publish(ctx, Input{Sender: "bob", Text: "x", Channel: "http"})
	assert.NoError(t, err, "other senders have their own bucket")

	_, err = c.Publish(ctx, Input{Sender: "ann", Text: "x", Channel: "http", System: true})
	assert.NoError(t, err)

	c.Apply(Config{RatePerMin: 0})
	for i := 0; i < 10; i++ {
		_, err = c.Publish(ctx, Input{Sender: "ann", Text: "x", Channel: "http"})
		require.NoError(t, err)
	}
}

func TestPublishRateLimitsPerClient(t *testing.T) {
	c := New(Config{RatePerMin: 1, Burst: 1}, nil, "", testCatalog(), nil, logx.Nop())
	ctx := context.Background()

	_, err := c.Publish(ctx, Input{Sender: "ann", Text: "x", Channel: "http", Client: "10.0.0.1"})
	require.NoError(t, err)
	_, err = c.Publish(ctx, Input{Sender: "renamed", Text: "x", Channel: "http", Client: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrRateLimited, "a new sender name does not get a new bucket")

	_, err = c.Publish(ctx, Input{Sender: "ann", Text: "x", Channel: "http", Client: "10.0.0.2"})
	assert.NoError(t, err)
}

func TestSystemPostSkipsLimitsAndVariant(t *testing.T) {
	c := New(Config{MaxTextLen: 3, RatePerMin: 1, Burst: 1}, nil, "", testCatalog(), nil, logx.Nop())
	for i := 0; i < 3; i++ {
		r, err := c.Publish(context.Background(), Input{Text: "long announcement", Duration: 4 * time.Second, System: true})
		require.NoError(t, err)
		assert.Equal(t, int64(4000), r.DurationMS)
	}
}

func TestPublishRejectedPostIsNotPublished(t *testing.T) {
	bus := eventbus.New()
	c := New(Config{}, bus, "t", testCatalog(), nil, logx.Nop())
	_, err := c.Publish(context.Background(), Input{Text: strings.Repeat("x", 101)})
	assert.ErrorIs(t, err, ErrTooLong)
	assert.Zero(t, bus.Stats().Published)
}

func TestPublishAppendsAudit(t *testing.T) {
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "a.db")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	c := New(Config{}, nil, "", testCatalog(), st, logx.Nop())
	r, err := c.Publish(context.Background(), Input{Sender: "ann", Media: "data:image/png;base64,AAAA", Channel: "http", Variant: "20s"})
	require.NoError(t, err)

	got, err := st.RecentPosts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.ID, got[0].ID)
	assert.Equal(t, "image", got[0].Kind)
	assert.Equal(t, "http", got[0].Channel)
	assert.Equal(t, "20s", got[0].Variant)
	assert.Equal(t, len("data:image/png;base64,AAAA"), got[0].MediaBytes)
}
