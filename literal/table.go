// Package literal resolves a unit's string constants through an intern pool,
// the way a loaded class resolves its constant pool strings.
package literal

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/RowanDark/internpool/canon"
	"github.com/RowanDark/internpool/contentkey"
)

// Interner is the part of the pool a literal table needs.
type Interner interface {
	Intern(s string) (*canon.String, error)
}

// Table holds string constants and their resolved canonical instances. A
// resolved slot keeps a strong reference, so its instance stays canonical for
// as long as the table is reachable.
type Table struct {
	pool      Interner
	constants []string
	resolved  []atomic.Pointer[canon.String]
	mu        sync.Mutex
}

// New returns a table over constants. Nothing is interned until Resolve.
func New(p Interner, constants []string) *Table {
	return &Table{
		pool:      p,
		constants: append([]string(nil), constants...),
		resolved:  make([]atomic.Pointer[canon.String], len(constants)),
	}
}

// Len returns the number of constant slots.
func (t *Table) Len() int {
	return len(t.constants)
}

// Resolve returns the canonical instance for slot i, interning it on first use.
// Every call for the same slot returns the same instance.
func (t *Table) Resolve(i int) (*canon.String, error) {
	if i < 0 || i >= len(t.constants) {
		return nil, fmt.Errorf("literal index %d out of range [0, %d): %w", i, len(t.constants), contentkey.ErrInvalidArgument)
	}
	if v := t.resolved[i].Load(); v != nil {
		return v, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if v := t.resolved[i].Load(); v != nil {
		return v, nil
	}
	v, err := t.pool.Intern(t.constants[i])
	if err != nil {
		return nil, fmt.Errorf("resolve literal %d: %w", i, err)
	}
	t.resolved[i].Store(v)
	return v, nil
}

// ResolveAll resolves every slot and stops at the first failure.
func (t *Table) ResolveAll() error {
	for i := range t.constants {
		if _, err := t.Resolve(i); err != nil {
			return err
		}
	}
	return nil
}

// Roots returns the instances resolved so far, in slot order.
func (t *Table) Roots() []*canon.String {
	roots := make([]*canon.String, 0, len(t.resolved))
	for i := range t.resolved {
		if v := t.resolved[i].Load(); v != nil {
			roots = append(roots, v)
		}
	}
	return roots
}
