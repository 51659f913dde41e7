// Package queue implements the load request queue: a binary heap ordered by
// priority (ties broken by enqueue order) with at most one entry per frame.
package queue

// Request is a queued intent to load one frame.
type Request struct {
	Frame    int
	Priority int // higher value drains first
	seq      uint64
	index    int
}

// RequestQueue holds pending load requests. It is not safe for concurrent
// use; the scheduler guards it with its own lock.
//
// Invariant: at most one Request per frame. Pushing a frame that is already
// queued re-prioritizes the existing request (upgrade only) instead of
// duplicating it.
type RequestQueue struct {
	items   []*Request
	byFrame map[int]*Request
	seq     uint64
}

// New creates an empty request queue.
func New() *RequestQueue {
	return &RequestQueue{
		byFrame: make(map[int]*Request),
	}
}

// Len returns the number of pending requests.
func (q *RequestQueue) Len() int { return len(q.items) }

// Push enqueues a load request for frame. If a request for the same frame is
// already queued, its priority is raised to priority when that is higher;
// a lower or equal priority never downgrades the queued request.
// Returns true if the queue changed.
func (q *RequestQueue) Push(frame, priority int) bool {
	if r, ok := q.byFrame[frame]; ok {
		if priority <= r.Priority {
			return false
		}
		r.Priority = priority
		q.seq++
		r.seq = q.seq
		q.fix(r.index)
		return true
	}

	q.seq++
	r := &Request{
		Frame:    frame,
		Priority: priority,
		seq:      q.seq,
		index:    len(q.items),
	}
	q.items = append(q.items, r)
	q.byFrame[frame] = r
	q.siftUp(r.index)
	return true
}

// Pop removes and returns the highest-priority request.
// Among equal priorities the earliest enqueued wins.
func (q *RequestQueue) Pop() (Request, bool) {
	n := len(q.items)
	if n == 0 {
		return Request{}, false
	}
	root := q.items[0]
	q.swap(0, n-1)
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.siftDown(0)
	}
	delete(q.byFrame, root.Frame)
	return *root, true
}

// Peek returns the request that Pop would return, without removing it.
func (q *RequestQueue) Peek() (Request, bool) {
	if len(q.items) == 0 {
		return Request{}, false
	}
	return *q.items[0], true
}

// Contains reports whether a request for frame is queued and returns its
// current priority.
func (q *RequestQueue) Contains(frame int) (int, bool) {
	if r, ok := q.byFrame[frame]; ok {
		return r.Priority, true
	}
	return 0, false
}

// Reset drops all pending requests.
func (q *RequestQueue) Reset() {
	q.items = q.items[:0]
	clear(q.byFrame)
}

func (q *RequestQueue) less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

func (q *RequestQueue) swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

// fix restores the heap after the request at i changed key in place.
func (q *RequestQueue) fix(i int) {
	q.siftUp(i)
	q.siftDown(i)
}

func (q *RequestQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.swap(i, p)
		i = p
	}
}

func (q *RequestQueue) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.swap(i, best)
		i = best
	}
}
