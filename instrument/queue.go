package instrument

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

type timed[T any] struct {
	at  time.Time
	seq uint64
	val T
}

type timedHeap[T any] []timed[T]

func (h timedHeap[T]) Len() int { return len(h) }
func (h timedHeap[T]) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h timedHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timedHeap[T]) Push(x any)   { *h = append(*h, x.(timed[T])) }
func (h *timedHeap[T]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// timedQueue holds values until their wall-clock time and hands them to
// a single consumer goroutine. Push never blocks.
type timedQueue[T any] struct {
	mu   sync.Mutex
	h    timedHeap[T]
	seq  uint64
	wake chan struct{}
	now  func() time.Time
}

func newTimedQueue[T any]() *timedQueue[T] {
	return &timedQueue[T]{wake: make(chan struct{}, 1), now: time.Now}
}

func (q *timedQueue[T]) push(at time.Time, v T) {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.h, timed[T]{at: at, seq: q.seq, val: v})
	first := q.h[0].seq == q.seq
	q.mu.Unlock()
	if first {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
}

// due pops everything at or before now and reports how long until the
// next pending value (negative when empty).
func (q *timedQueue[T]) due(now time.Time) ([]T, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []T
	for len(q.h) > 0 && !q.h[0].at.After(now) {
		out = append(out, heap.Pop(&q.h).(timed[T]).val)
	}
	if len(q.h) == 0 {
		return out, -1
	}
	return out, q.h[0].at.Sub(now)
}

// drain empties the queue, returning what was pending in time order
func (q *timedQueue[T]) drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, 0, len(q.h))
	for len(q.h) > 0 {
		out = append(out, heap.Pop(&q.h).(timed[T]).val)
	}
	return out
}

func (q *timedQueue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// run delivers values to emit as they fall due until ctx is done
func (q *timedQueue[T]) run(ctx context.Context, emit func(T)) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		ready, wait := q.due(q.now())
		for _, v := range ready {
			emit(v)
		}
		if wait < 0 {
			wait = time.Hour
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-timer.C:
		}
	}
}
