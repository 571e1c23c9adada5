// Package upgrade tracks the active logic implementation and gates the swap
// to a new one. The gate authorizes; the loader performs the actual switch.
// Persisted state is owned elsewhere and survives the swap untouched.
package upgrade

import (
	"errors"
	"fmt"

	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

var (
	// ErrNoImplementation is returned when a swap targets the zero address.
	ErrNoImplementation = errors.New("implementation address is zero")
	// ErrSameImplementation is returned when a swap targets the already
	// active implementation.
	ErrSameImplementation = errors.New("implementation already active")
)

// Implementation identifies one logic module version.
type Implementation struct {
	Address token.Address `json:"address"`
	Version string        `json:"version"`
}

// Loader performs the code-pointer swap once the gate has authorized it.
// The default deployment uses a no-op loader; the hook exists so an embedding
// process can load real logic modules.
type Loader interface {
	Load(next Implementation) error
}

// NopLoader accepts every swap without side effects.
type NopLoader struct{}

func (NopLoader) Load(Implementation) error { return nil }

// Gate holds the active implementation pointer and its history.
type Gate struct {
	current Implementation
	history []Implementation
	loader  Loader
}

func NewGate(initial Implementation, loader Loader) *Gate {
	if loader == nil {
		loader = NopLoader{}
	}
	return &Gate{
		current: initial,
		history: []Implementation{initial},
		loader:  loader,
	}
}

// Current returns the active implementation.
func (g *Gate) Current() Implementation {
	return g.current
}

// History returns every implementation ever activated, oldest first.
func (g *Gate) History() []Implementation {
	out := make([]Implementation, len(g.history))
	copy(out, g.history)
	return out
}

// Upgrade swaps the active implementation. Role authorization happens at the
// command layer; the gate itself only rejects structurally invalid targets,
// mirroring an authorize hook that performs no further validation.
func (g *Gate) Upgrade(next Implementation) error {
	if next.Address.IsZero() {
		return ErrNoImplementation
	}
	if next.Address == g.current.Address {
		return fmt.Errorf("%w: %s", ErrSameImplementation, next.Address)
	}
	if err := g.loader.Load(next); err != nil {
		return fmt.Errorf("load implementation %s: %w", next.Address, err)
	}
	g.current = next
	g.history = append(g.history, next)
	return nil
}

// Restore resets the gate from persisted state during recovery.
func (g *Gate) Restore(current Implementation, history []Implementation) {
	g.current = current
	g.history = make([]Implementation, len(history))
	copy(g.history, history)
}
