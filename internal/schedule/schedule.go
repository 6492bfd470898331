// Package schedule runs a fixed number of callbacks at a fixed interval and
// hands back a handle that cancels whatever has not fired yet.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Fire is called once per tick with n counting from 1. ctx is cancelled when
// the handle is; anything that might block inside Fire should select on it.
type Fire func(ctx context.Context, n int)

type Scheduler interface {
	Every(interval time.Duration, count int, fire Fire) Handle
}

type Handle interface {
	// Cancel stops further fires. Once it returns, fire is not running
	// and will not be called again. Safe to call more than once.
	Cancel()
	// Done is closed after the last fire or after Cancel.
	Done() <-chan struct{}
}

// Real schedules on wall-clock time. Ticks are spaced from the Every call,
// not from the end of the previous fire.
type Real struct{}

func (Real) Every(interval time.Duration, count int, fire Fire) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &realHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer cancel()
		if count <= 0 {
			return
		}
		if interval <= 0 {
			interval = time.Nanosecond
		}

		t := time.NewTicker(interval)
		defer t.Stop()

		for n := 1; n <= count; n++ {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			// A cancel racing the tick wins.
			if ctx.Err() != nil {
				return
			}
			fire(ctx, n)
		}
	}()
	return h
}

type realHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *realHandle) Cancel() {
	h.cancel()
	<-h.done
}

func (h *realHandle) Done() <-chan struct{} { return h.done }

// Manual fires only when told to. Tests use it to step a draw tick by tick.
type Manual struct {
	mu      sync.Mutex
	handles []*manualHandle
}

func NewManual() *Manual { return &Manual{} }

func (m *Manual) Every(_ time.Duration, count int, fire Fire) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &manualHandle{ctx: ctx, cancel: cancel, fire: fire, count: count, done: make(chan struct{})}
	if count <= 0 {
		h.finish()
	}

	m.mu.Lock()
	m.handles = append(m.handles, h)
	m.mu.Unlock()
	return h
}

// Advance fires the next tick of every live handle and reports how many
// fired.
func (m *Manual) Advance() int {
	m.mu.Lock()
	live := make([]*manualHandle, 0, len(m.handles))
	for _, h := range m.handles {
		if !h.finished() {
			live = append(live, h)
		}
	}
	m.handles = live
	m.mu.Unlock()

	fired := 0
	for _, h := range live {
		if h.step() {
			fired++
		}
	}
	return fired
}

// Live reports how many handles still have ticks pending.
func (m *Manual) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, h := range m.handles {
		if !h.finished() {
			n++
		}
	}
	return n
}

type manualHandle struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	fire   Fire
	count  int
	fired  int
	closed bool
	done   chan struct{}
}

func (h *manualHandle) step() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.fired++
	h.fire(h.ctx, h.fired)
	if h.fired >= h.count {
		h.finishLocked()
	}
	return true
}

func (h *manualHandle) Cancel() {
	h.cancel()
	h.mu.Lock()
	h.finishLocked()
	h.mu.Unlock()
}

func (h *manualHandle) Done() <-chan struct{} { return h.done }

func (h *manualHandle) finished() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *manualHandle) finish() {
	h.mu.Lock()
	h.finishLocked()
	h.mu.Unlock()
}

func (h *manualHandle) finishLocked() {
	if h.closed {
		return
	}
	h.closed = true
	h.cancel()
	close(h.done)
}
