package reachability

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

// ManualOptions configures a ManualBridge.
type ManualOptions struct {
	// Notify enables reclamation callbacks. Without it OnReclaimed reports false
	// and staleness is only visible through IsLive.
	Notify bool
	// Capacity bounds the number of tracked instances. Zero means unbounded.
	Capacity int
}

// ManualBridge is a bridge for hosts that decide reachability themselves. Every
// held instance stays live until the host calls Reclaim for it; the bridge never
// consults the Go garbage collector about liveness.
type ManualBridge[T any] struct {
	mu       sync.Mutex
	notify   bool
	capacity int
	handles  map[*T]*manualHandle[T]
}

type manualHandle[T any] struct {
	value     atomic.Pointer[T]
	callbacks []func()
}

func (h *manualHandle[T]) Value() *T {
	if h == nil {
		return nil
	}
	return h.value.Load()
}

// NewManualBridge returns an empty manually driven bridge.
func NewManualBridge[T any](opts ManualOptions) *ManualBridge[T] {
	return &ManualBridge[T]{
		notify:   opts.Notify,
		capacity: opts.Capacity,
		handles:  make(map[*T]*manualHandle[T]),
	}
}

func (b *ManualBridge[T]) HoldWeakly(v *T) (Handle[T], error) {
	if v == nil {
		return nil, fmt.Errorf("hold nil instance: %w", ErrInvalidArgument)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if h, ok := b.handles[v]; ok {
		return h, nil
	}
	if b.capacity > 0 && len(b.handles) >= b.capacity {
		return nil, fmt.Errorf("%d instances tracked: %w", b.capacity, ErrResourceExhausted)
	}
	h := &manualHandle[T]{}
	h.value.Store(v)
	b.handles[v] = h
	return h, nil
}

func (b *ManualBridge[T]) IsLive(h Handle[T]) bool {
	if h == nil {
		return false
	}
	return h.Value() != nil
}

func (b *ManualBridge[T]) OnReclaimed(h Handle[T], fn func()) bool {
	mh, ok := h.(*manualHandle[T])
	if !ok || fn == nil || !b.notify {
		return false
	}
	b.mu.Lock()
	if mh.value.Load() == nil {
		b.mu.Unlock()
		go fn()
		return true
	}
	mh.callbacks = append(mh.callbacks, fn)
	b.mu.Unlock()
	return true
}

// Reclaim marks v unreachable, as the host collector would after v's last owner
// dropped it, and runs any reclamation callbacks on the calling goroutine. It
// reports whether v was tracked.
func (b *ManualBridge[T]) Reclaim(v *T) bool {
	return b.ReclaimFunc(func(candidate *T) bool { return candidate == v }) > 0
}

// ReclaimAll reclaims every tracked instance and returns how many there were.
func (b *ManualBridge[T]) ReclaimAll() int {
	return b.ReclaimFunc(func(*T) bool { return true })
}

// ReclaimFunc reclaims every tracked instance for which match returns true.
func (b *ManualBridge[T]) ReclaimFunc(match func(*T) bool) int {
	var callbacks []func()
	reclaimed := 0

	b.mu.Lock()
	for v, h := range b.handles {
		if !match(v) {
			continue
		}
		delete(b.handles, v)
		h.value.Store(nil)
		callbacks = append(callbacks, h.callbacks...)
		h.callbacks = nil
		reclaimed++
	}
	b.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return reclaimed
}

// Tracked returns the number of instances that have not been reclaimed.
func (b *ManualBridge[T]) Tracked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}
