package reachability

import (
	"fmt"
	"runtime"
	"weak"

	"go.uber.org/atomic"
)

// WeakOptions configures a WeakBridge.
type WeakOptions struct {
	// MaxHandles bounds the number of handles whose instances have not been
	// reclaimed yet. Zero means unbounded.
	MaxHandles int64
}

// WeakBridge backs handles with the Go garbage collector: weak pointers for
// liveness and cleanups for reclamation notices.
type WeakBridge[T any] struct {
	maxHandles  int64
	outstanding *atomic.Int64
}

type weakHandle[T any] struct {
	ptr weak.Pointer[T]
}

func (h *weakHandle[T]) Value() *T {
	if h == nil {
		return nil
	}
	return h.ptr.Value()
}

// NewWeakBridge returns a bridge over the Go runtime's memory manager.
func NewWeakBridge[T any](opts WeakOptions) *WeakBridge[T] {
	return &WeakBridge[T]{
		maxHandles:  opts.MaxHandles,
		outstanding: atomic.NewInt64(0),
	}
}

func (b *WeakBridge[T]) HoldWeakly(v *T) (Handle[T], error) {
	if v == nil {
		return nil, fmt.Errorf("hold nil instance: %w", ErrInvalidArgument)
	}
	if b.maxHandles > 0 {
		if b.outstanding.Inc() > b.maxHandles {
			b.outstanding.Dec()
			return nil, fmt.Errorf("%d weak handles outstanding: %w", b.maxHandles, ErrResourceExhausted)
		}
		runtime.AddCleanup(v, func(counter *atomic.Int64) { counter.Dec() }, b.outstanding)
	}
	return &weakHandle[T]{ptr: weak.Make(v)}, nil
}

func (b *WeakBridge[T]) IsLive(h Handle[T]) bool {
	if h == nil {
		return false
	}
	return h.Value() != nil
}

func (b *WeakBridge[T]) OnReclaimed(h Handle[T], fn func()) bool {
	wh, ok := h.(*weakHandle[T])
	if !ok || fn == nil {
		return false
	}
	v := wh.ptr.Value()
	if v == nil {
		go fn()
		return true
	}
	runtime.AddCleanup(v, func(notify func()) { notify() }, fn)
	return true
}

// Outstanding returns the number of handles counted against MaxHandles. It is
// only maintained when MaxHandles is set.
func (b *WeakBridge[T]) Outstanding() int64 {
	return b.outstanding.Load()
}
