// Package contentkey derives hashable, comparable keys from string content.
//
// A Key depends only on the content it was computed from, never on the identity
// of the value that carried it. Two keys are equal exactly when their contents
// are equal byte for byte; a matching hash alone is never enough.
package contentkey

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/zeebo/xxh3"

	"github.com/RowanDark/internpool/internal/bufpool"
)

// ErrInvalidArgument reports absent or malformed content.
var ErrInvalidArgument = errors.New("invalid argument")

// Key is the content of a string together with its 64-bit hash.
type Key struct {
	content string
	hash    uint64
}

// Compute returns the key for content. The empty string is a valid content value.
func Compute(content string) Key {
	return Key{content: content, hash: xxh3.HashString(content)}
}

// ComputeBytes returns the key for the bytes in b. A nil slice is absent content
// and yields ErrInvalidArgument; a non-nil empty slice is the empty content.
func ComputeBytes(b []byte) (Key, error) {
	if b == nil {
		return Key{}, fmt.Errorf("content bytes: %w", ErrInvalidArgument)
	}
	return Key{content: string(b), hash: xxh3.Hash(b)}, nil
}

// ComputeUTF16 returns the key for content expressed as UTF-16 code units.
// The content is transcoded to UTF-8 so that it keys identically to the equal
// Go string. Unpaired surrogates are rejected.
func ComputeUTF16(units []uint16) (Key, error) {
	if units == nil {
		return Key{}, fmt.Errorf("content code units: %w", ErrInvalidArgument)
	}

	buf := bufpool.Acquire(len(units) * 3)
	defer bufpool.Release(buf)

	out := *buf
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		if utf16.IsSurrogate(r) {
			if r >= 0xDC00 || i+1 >= len(units) {
				return Key{}, fmt.Errorf("unpaired surrogate %#04x at index %d: %w", units[i], i, ErrInvalidArgument)
			}
			r = utf16.DecodeRune(r, rune(units[i+1]))
			if r == utf8.RuneError {
				return Key{}, fmt.Errorf("unpaired surrogate %#04x at index %d: %w", units[i], i, ErrInvalidArgument)
			}
			i++
		}
		out = utf8.AppendRune(out, r)
	}
	*buf = out

	return Key{content: string(out), hash: xxh3.Hash(out)}, nil
}

// Make builds a key from content and a hash the caller already holds. The hash
// must have been produced for this exact content; it is not recomputed.
func Make(content string, hash uint64) Key {
	return Key{content: content, hash: hash}
}

// Hash returns the content hash.
func (k Key) Hash() uint64 { return k.hash }

// Content returns the content the key was computed from.
func (k Key) Content() string { return k.content }

// Len returns the content length in bytes.
func (k Key) Len() int { return len(k.content) }

// Equal reports whether k and other were computed from equal content.
func (k Key) Equal(other Key) bool {
	return k.hash == other.hash && k.content == other.content
}

// String renders the key for diagnostics, truncating long content.
func (k Key) String() string {
	const limit = 32
	content := k.content
	if len(content) > limit {
		content = content[:limit] + "..."
	}
	return fmt.Sprintf("%016x:%q", k.hash, content)
}
