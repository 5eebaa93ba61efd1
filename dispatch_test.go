package oren

import (
	"sync"
	"testing"
)

func TestNotifyQueueOrder(t *testing.T) {
	var q notifyQueue
	var got []int

	for i := 0; i < 3; i++ {
		i := i
		q.push("test", func() { got = append(got, i) })
	}
	if q.len() != 3 {
		t.Errorf("len() = %d, want 3", q.len())
	}
	q.drain()

	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Errorf("delivery order = %v", got)
	}
	if q.len() != 0 {
		t.Errorf("len() after drain = %d", q.len())
	}
}

func TestNotifyQueueReentrantPush(t *testing.T) {
	var q notifyQueue
	var got []string

	q.push("outer", func() {
		got = append(got, "outer-start")
		q.push("inner", func() { got = append(got, "inner") })
		q.drain() // already draining: returns immediately
		got = append(got, "outer-end")
	})
	q.drain()

	want := []string{"outer-start", "outer-end", "inner"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestNotifyQueueRecoversPanic(t *testing.T) {
	var q notifyQueue
	ran := false

	q.push("bad", func() { panic("boom") })
	q.push("good", func() { ran = true })
	q.drain()

	if !ran {
		t.Error("callback after a panicking one did not run")
	}
}

func TestNotifyQueueConcurrentDrain(t *testing.T) {
	var q notifyQueue
	var mu sync.Mutex
	count := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.push("count", func() {
					mu.Lock()
					count++
					mu.Unlock()
				})
				q.drain()
			}
		}()
	}
	wg.Wait()
	q.drain()

	if count != 400 {
		t.Errorf("count = %d, want 400", count)
	}
}

func TestNotifyQueueInCallback(t *testing.T) {
	var q notifyQueue
	var inside bool
	q.push("OnAlone", func() { inside = q.inCallback() })
	if q.inCallback() {
		t.Error("inCallback() = true before drain")
	}
	q.drain()
	if !inside {
		t.Error("inCallback() = false inside a callback")
	}
	if q.inCallback() {
		t.Error("inCallback() = true after drain")
	}
}
