// Package canon defines the canonical string instance handed out by the pool.
package canon

import (
	"strings"

	"github.com/RowanDark/internpool/contentkey"
)

// String is a canonical string instance. Two *String values obtained from the
// same pool are the same pointer exactly when their contents are equal, for as
// long as both are reachable.
type String struct {
	_   [0]func() // not comparable by value; compare pointers
	key contentkey.Key
}

// New allocates a fresh instance for key holding a private copy of its content,
// so the instance never pins a larger buffer owned by the caller.
func New(key contentkey.Key) *String {
	return &String{key: contentkey.Make(strings.Clone(key.Content()), key.Hash())}
}

// String returns the content.
func (s *String) String() string {
	if s == nil {
		return ""
	}
	return s.key.Content()
}

// Len returns the content length in bytes.
func (s *String) Len() int {
	if s == nil {
		return 0
	}
	return s.key.Len()
}

// Key returns the cached content key.
func (s *String) Key() contentkey.Key {
	if s == nil {
		return contentkey.Key{}
	}
	return s.key
}

// Hash returns the cached content hash.
func (s *String) Hash() uint64 {
	if s == nil {
		return 0
	}
	return s.key.Hash()
}
