package eventbus

import (
	"sync"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestPublishDeliversInOrderToEverySubscriber(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe("screen", 16)
	defer unsubA()
	c, unsubC := b.Subscribe("screen", 16)
	defer unsubC()

	for i := 0; i < 10; i++ {
		b.Publish(Event{Topic: "screen", Data: i})
	}
	for _, ch := range []<-chan Event{a, c} {
		for i := 0; i < 10; i++ {
			e := recv(t, ch)
			if e.Data.(int) != i {
				t.Fatalf("got %v, want %d", e.Data, i)
			}
			if e.Time.IsZero() {
				t.Fatal("expected publish time to be stamped")
			}
		}
	}
}

func TestTopicFilteringAndWildcard(t *testing.T) {
	t.Parallel()
	b := New()
	only, u1 := b.Subscribe("a", 4)
	defer u1()
	all, u2 := b.Subscribe("", 4)
	defer u2()

	b.Publish(Event{Topic: "b", Data: "x"})
	b.Publish(Event{Topic: "a", Data: "y"})

	if e := recv(t, only); e.Data != "y" {
		t.Fatalf("topic subscriber got %v", e.Data)
	}
	if e := recv(t, all); e.Data != "x" {
		t.Fatalf("wildcard subscriber got %v first", e.Data)
	}
	if e := recv(t, all); e.Data != "y" {
		t.Fatalf("wildcard subscriber got %v second", e.Data)
	}
}

func TestLateSubscriberSeesNothingPast(t *testing.T) {
	t.Parallel()
	b := New()
	b.Publish(Event{Topic: "a", Data: 1})
	ch, unsub := b.Subscribe("a", 4)
	defer unsub()
	select {
	case e := <-ch:
		t.Fatalf("unexpected replay: %v", e)
	default:
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe("a", 1)
	defer unsub()
	b.Publish(Event{Topic: "a"})
	b.Publish(Event{Topic: "a"})

	st := b.Stats()
	if st.Published != 2 || st.Delivered != 1 || st.Dropped != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestUnsubscribeIsIdempotentAndSafeDuringPublish(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe("a", 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.Publish(Event{Topic: "a", Data: i})
		}
	}()
	unsub()
	unsub()
	wg.Wait()

	for range ch {
		// drain until closed
	}
	if n := b.Stats().Subscribers; n != 0 {
		t.Fatalf("subscribers = %d, want 0", n)
	}
}

func TestLosslessSubscriberKeepsEveryEventInOrder(t *testing.T) {
	t.Parallel()
	b := New()
	keep, unsubKeep := b.Subscribe("req", 4, Lossless())
	defer unsubKeep()
	lossy, unsubLossy := b.Subscribe("req", 4)
	defer unsubLossy()

	const n = 1000
	for i := 0; i < n; i++ {
		b.Publish(Event{Topic: "req", Data: i})
	}
	for i := 0; i < n; i++ {
		if e := recv(t, keep); e.Data.(int) != i {
			t.Fatalf("got %v, want %d", e.Data, i)
		}
	}
	st := b.Stats()
	if st.Dropped != n-4 {
		t.Fatalf("dropped = %d, want %d (lossy subscriber only)", st.Dropped, n-4)
	}
	if st.Backlogged == 0 {
		t.Fatal("expected the lossless subscriber to backlog")
	}
}

func TestLosslessUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe("req", 1, Lossless())
	for i := 0; i < 10; i++ {
		b.Publish(Event{Topic: "req", Data: i})
	}
	unsub()
	unsub()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				b.Publish(Event{Topic: "req", Data: "after"})
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after unsubscribe")
		}
	}
}
