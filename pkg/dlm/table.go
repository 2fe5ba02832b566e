// Package dlm is the routine table a host environment calls into: each
// routine has a name, an argument count range, and is either a function
// (returns a value) or a procedure (returns nothing).
package dlm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Sentinel errors for routine dispatch.
var (
	// ErrUnknownRoutine is returned when no routine has the given name.
	ErrUnknownRoutine = errors.New("dlm: unknown routine")

	// ErrArity is returned when a routine gets too few or too many arguments.
	ErrArity = errors.New("dlm: wrong number of arguments")

	// ErrBadArgument is returned when an argument cannot be converted.
	ErrBadArgument = errors.New("dlm: bad argument")

	// ErrDuplicate is returned when a routine name is registered twice.
	ErrDuplicate = errors.New("dlm: routine already registered")
)

// Func implements a routine. Arguments may be updated in place, the way
// host procedures write back through their parameters.
type Func func(ctx context.Context, args []any) (any, error)

// Routine describes one callable entry.
type Routine struct {
	Name      string `json:"name"`
	MinArgs   int    `json:"min_args"`
	MaxArgs   int    `json:"max_args"`
	Procedure bool   `json:"procedure"`
	Fn        Func   `json:"-"`
}

// Table maps routine names to routines. Names are case-insensitive.
type Table struct {
	mu       sync.RWMutex
	routines map[string]Routine
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{routines: make(map[string]Routine)}
}

// Add registers routines. It fails without registering anything if any
// name is taken or a definition is inconsistent.
func (t *Table) Add(rs ...Routine) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool)
	for _, r := range rs {
		key := strings.ToUpper(r.Name)
		if _, dup := t.routines[key]; dup || seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicate, key)
		}
		if r.Fn == nil || r.MinArgs < 0 || r.MaxArgs < r.MinArgs {
			return fmt.Errorf("dlm: invalid definition for %s", key)
		}
		seen[key] = true
	}
	for _, r := range rs {
		r.Name = strings.ToUpper(r.Name)
		t.routines[r.Name] = r
	}
	return nil
}

// Lookup returns the routine registered under name.
func (t *Table) Lookup(name string) (Routine, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.routines[strings.ToUpper(name)]
	return r, ok
}

// Routines returns all routines sorted by name.
func (t *Table) Routines() []Routine {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Routine, 0, len(t.routines))
	for _, r := range t.routines {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call invokes a routine after checking its argument count. Procedures
// always return a nil value.
func (t *Table) Call(ctx context.Context, name string, args []any) (any, error) {
	r, ok := t.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoutine, name)
	}
	if len(args) < r.MinArgs || len(args) > r.MaxArgs {
		if r.MinArgs == r.MaxArgs {
			return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, r.Name, r.MinArgs, len(args))
		}
		return nil, fmt.Errorf("%w: %s takes %d to %d, got %d", ErrArity, r.Name, r.MinArgs, r.MaxArgs, len(args))
	}

	v, err := r.Fn(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Name, err)
	}
	if r.Procedure {
		return nil, nil
	}
	return v, nil
}
