// Package reconcile provides the reconciliation framework for making
// array resources match their desired state.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies a type of reconcilable resource.
type Kind string

// Resource kinds
const (
	KindHost         Kind = "host"
	KindStorageGroup Kind = "storage_group"
)

// State is the desired existence of a resource.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// ParseState validates a desired state string.
func ParseState(s string) (State, error) {
	switch State(strings.ToLower(s)) {
	case StatePresent:
		return StatePresent, nil
	case StateAbsent:
		return StateAbsent, nil
	}
	return "", fmt.Errorf("invalid state %q: must be present or absent", s)
}

// ResourceKey uniquely identifies a reconcilable resource.
type ResourceKey struct {
	Kind   Kind
	SymmID string
	ID     string
}

func (k ResourceKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Kind, k.SymmID, k.ID)
}

// NormalizeID uppercases a resource name the way the array stores it.
func NormalizeID(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Resource is the core abstraction for anything reconcilable.
// Each resource loads its own actual state and knows the single
// call that moves it to the desired state.
type Resource interface {
	// Key returns unique identifier for this resource.
	Key() ResourceKey

	// Desired returns the requested state.
	Desired() State

	// Load fetches actual state into internal fields.
	Load(ctx context.Context) error

	// NeedsReconcile returns true if actual != desired (uses internal state).
	NeedsReconcile() bool

	// ReconcileStep issues the one corrective call.
	ReconcileStep(ctx context.Context) error
}

// Result is what one reconciliation reports back.
type Result struct {
	Kind    Kind
	Name    string
	State   State
	Changed bool
}

// MarshalJSON reports hosts under "hostname" and everything else under "name".
func (r Result) MarshalJSON() ([]byte, error) {
	nameKey := "name"
	if r.Kind == KindHost {
		nameKey = "hostname"
	}
	return json.Marshal(map[string]any{
		nameKey:   r.Name,
		"state":   r.State,
		"changed": r.Changed,
	})
}
