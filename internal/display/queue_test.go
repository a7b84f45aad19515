package display

import "testing"

func TestQueueFIFO(t *testing.T) {
	var q Queue
	if _, ok := q.Pop(); ok {
		t.Fatal("expected empty queue")
	}
	for i := 1; i <= 3; i++ {
		q.Push(Request{ID: int64(i)})
	}
	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}
	for i := 1; i <= 3; i++ {
		r, ok := q.Pop()
		if !ok || r.ID != int64(i) {
			t.Fatalf("pop %d = %v (ok=%v)", i, r.ID, ok)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("len = %d, want 0", q.Len())
	}
}

func TestQueueKeepsOrderAcrossCompaction(t *testing.T) {
	var q Queue
	next := int64(0)
	want := int64(0)
	// Interleave pushes and pops so the consumed prefix triggers compaction.
	for round := 0; round < 50; round++ {
		for i := 0; i < 7; i++ {
			next++
			q.Push(Request{ID: next})
		}
		for i := 0; i < 5; i++ {
			r, ok := q.Pop()
			want++
			if !ok || r.ID != want {
				t.Fatalf("round %d: got %d, want %d", round, r.ID, want)
			}
		}
	}
	if q.Len() != int(next-want) {
		t.Fatalf("len = %d, want %d", q.Len(), next-want)
	}
	for q.Len() > 0 {
		r, _ := q.Pop()
		want++
		if r.ID != want {
			t.Fatalf("drain: got %d, want %d", r.ID, want)
		}
	}
}
