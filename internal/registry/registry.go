// Package registry is the host-side save registry: the set of units with
// unsaved changes that a "save all" or shutdown prompt acts on.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Unit is something with unsaved changes that knows how to save itself.
// Units are identified by Key; two units with the same key are the same
// unit.
type Unit interface {
	Key() string
	DisplayName() string
	HandleSave(ctx context.Context) error
}

// CheckedUnit is a Unit that can report whether a save wrote anything.
// A unit with nothing to save returns false and a nil error.
type CheckedUnit interface {
	Unit
	TrySave(ctx context.Context) (bool, error)
}

// Logger is the logging surface the registry needs.
type Logger interface {
	Debug(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}

// SaveRegistry tracks units with unsaved changes.
type SaveRegistry struct {
	mu     sync.RWMutex
	units  map[string]Unit
	logger Logger
}

// New creates an empty registry.
func New(logger Logger) *SaveRegistry {
	if logger == nil {
		logger = nopLogger{}
	}
	return &SaveRegistry{
		units:  make(map[string]Unit),
		logger: logger,
	}
}

// Register adds u. Registering a key that is already present replaces the
// previous unit.
func (r *SaveRegistry) Register(u Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[u.Key()] = u
	r.logger.Debug("registered %s for save", u.DisplayName())
}

// Unregister removes u. Unknown units are ignored.
func (r *SaveRegistry) Unregister(u Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.units[u.Key()]; ok {
		delete(r.units, u.Key())
		r.logger.Debug("unregistered %s", u.DisplayName())
	}
}

// Count returns the number of registered units.
func (r *SaveRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

// Units returns the registered units ordered by display name.
func (r *SaveRegistry) Units() []Unit {
	r.mu.RLock()
	units := make([]Unit, 0, len(r.units))
	for _, u := range r.units {
		units = append(units, u)
	}
	r.mu.RUnlock()

	sort.Slice(units, func(i, j int) bool {
		if units[i].DisplayName() != units[j].DisplayName() {
			return units[i].DisplayName() < units[j].DisplayName()
		}
		return units[i].Key() < units[j].Key()
	})
	return units
}

// SaveAll asks every registered unit to save itself. It returns how many
// units wrote content and the errors of those that failed. A CheckedUnit
// reporting nothing to save is neither counted nor an error. Units
// unregister themselves as they save, so the registry lock is not held
// while saving.
func (r *SaveRegistry) SaveAll(ctx context.Context) (int, []error) {
	var errs []error
	saved := 0

	for _, u := range r.Units() {
		select {
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("save all interrupted: %w", ctx.Err()))
			return saved, errs
		default:
		}

		r.logger.Debug("saving %s", u.DisplayName())
		wrote, err := save(ctx, u)
		if err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", u.DisplayName(), err))
			continue
		}
		if !wrote {
			r.logger.Debug("nothing to save for %s", u.DisplayName())
			continue
		}
		saved++
	}

	return saved, errs
}

func save(ctx context.Context, u Unit) (bool, error) {
	if cu, ok := u.(CheckedUnit); ok {
		return cu.TrySave(ctx)
	}
	if err := u.HandleSave(ctx); err != nil {
		return false, err
	}
	return true, nil
}
