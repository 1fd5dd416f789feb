// Package reachability is the pool's view of the host memory manager: it holds
// canonical instances without keeping them alive and reports when they are gone.
package reachability

import (
	"errors"

	"github.com/RowanDark/internpool/contentkey"
)

// ErrResourceExhausted reports that the host cannot allocate the bookkeeping for
// another weak handle.
var ErrResourceExhausted = errors.New("resource exhausted")

// ErrInvalidArgument is returned when asked to hold a nil instance.
var ErrInvalidArgument = contentkey.ErrInvalidArgument

// Handle is a non-owning reference. Value returns the referenced instance, or nil
// once the host has reclaimed it. A non-nil result is a strong reference.
type Handle[T any] interface {
	Value() *T
}

// Bridge abstracts over the host memory manager.
//
// HoldWeakly registers a non-owning handle for v. IsLive reports whether the
// handle's instance is still reachable elsewhere and may be called at any time,
// including concurrently with reclamation. OnReclaimed arranges for fn to run
// once the instance has been reclaimed and reports false when the host offers no
// such notification; callers then detect staleness lazily. fn may run on any
// goroutine and must not reference the instance.
type Bridge[T any] interface {
	HoldWeakly(v *T) (Handle[T], error)
	IsLive(h Handle[T]) bool
	OnReclaimed(h Handle[T], fn func()) bool
}
