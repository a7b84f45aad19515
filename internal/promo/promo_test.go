package promo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubcast/internal/display"
	"pubcast/internal/producer"
	logx "pubcast/pkg/logx"
)

type recorder struct {
	mu  sync.Mutex
	got []producer.Input
}

func (r *recorder) Publish(ctx context.Context, in producer.Input) (display.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, in)
	return display.Request{ID: int64(len(r.got))}, nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestFireBuildsSystemPost(t *testing.T) {
	rec := &recorder{}
	s := New(Config{Text: " Happy hour ", Subtext: "5-7pm", Duration: 20 * time.Second}, rec, logx.Nop())

	_, err := s.Fire(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.got, 1)
	in := rec.got[0]
	assert.Equal(t, "Happy hour\n5-7pm", in.Text)
	assert.Equal(t, display.OriginSystem, in.Origin)
	assert.True(t, in.System)
	assert.Equal(t, 20*time.Second, in.Duration)
	assert.Equal(t, uint64(1), s.Fired())
}

func TestScheduleFiresAndApplyDisables(t *testing.T) {
	rec := &recorder{}
	s := New(Config{Enabled: true, Schedule: "@every 1s", Text: "promo"}, rec, logx.Nop())
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	require.Eventually(t, func() bool { return rec.count() >= 1 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Apply(Config{Enabled: false}))
	n := rec.count()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, n, rec.count(), "disabled promo does not fire")

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(stopCtx))
}

func TestStartRejectsBadConfig(t *testing.T) {
	s := New(Config{Enabled: true, Schedule: "not a schedule", Text: "x"}, &recorder{}, logx.Nop())
	assert.Error(t, s.Start(context.Background()))

	s = New(Config{Enabled: true, Schedule: "@hourly"}, &recorder{}, logx.Nop())
	assert.Error(t, s.Start(context.Background()))

	s = New(Config{Enabled: true, Schedule: "@hourly", Text: "x", Timezone: "Nowhere/Land"}, &recorder{}, logx.Nop())
	assert.Error(t, s.Start(context.Background()))
}
