package oren

import "sync"

// notifyQueue delivers callbacks outside the client's state lock.
//
// State changes push notifications while holding the client mutex; the caller
// drains after unlocking. Only one goroutine drains at a time, so callbacks
// run serialized and in push order. A callback that calls back into the
// client pushes further notifications, which the active drainer picks up
// after the current callback returns.
type notifyQueue struct {
	mu       sync.Mutex
	pending  []notification
	draining bool
	running  bool // a callback is executing on the draining goroutine
}

type notification struct {
	name string
	fn   func()
}

func (q *notifyQueue) push(name string, fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, notification{name: name, fn: fn})
	q.mu.Unlock()
}

// drain runs queued notifications until the queue is empty. It returns
// immediately if another goroutine is already draining.
func (q *notifyQueue) drain() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	for len(q.pending) > 0 {
		n := q.pending[0]
		q.pending[0] = notification{}
		q.pending = q.pending[1:]
		q.running = true
		q.mu.Unlock()
		n.run()
		q.mu.Lock()
		q.running = false
	}
	q.pending = nil
	q.draining = false
	q.mu.Unlock()
}

// inCallback reports whether a callback is currently executing.
func (q *notifyQueue) inCallback() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

func (q *notifyQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (n notification) run() {
	defer func() {
		if r := recover(); r != nil {
			Error("Panic in %s callback: %v", n.name, r)
		}
	}()
	n.fn()
}
