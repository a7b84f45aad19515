package display

// Queue is an unbounded FIFO of requests. It is not safe for concurrent use; the
// scheduler loop is its only owner.
type Queue struct {
	items []Request
	head  int
}

// Push appends to the tail.
func (q *Queue) Push(r Request) {
	q.items = append(q.items, r)
}

// Pop removes and returns the head.
func (q *Queue) Pop() (Request, bool) {
	if q.head >= len(q.items) {
		return Request{}, false
	}
	r := q.items[q.head]
	q.items[q.head] = Request{} // drop references (media payloads can be large)
	q.head++

	// Compact once the consumed prefix dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head >= 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return r, true
}

func (q *Queue) Len() int { return len(q.items) - q.head }
