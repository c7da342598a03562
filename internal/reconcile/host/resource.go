// Package host provides the reconciliation resource for array hosts.
package host

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/unictl/internal/reconcile"
	"github.com/dokzlo13/unictl/internal/unisphere"
)

// API is the subset of the Unisphere client a host needs.
type API interface {
	GetHost(ctx context.Context, symmID, hostID string) (*unisphere.Response, error)
	CreateHost(ctx context.Context, symmID string, params unisphere.CreateHostParams) (*unisphere.Response, error)
	DeleteHost(ctx context.Context, symmID, hostID string) (*unisphere.Response, error)
	WaitHostGone(ctx context.Context, symmID, hostID string, cfg unisphere.WaitConfig) (*unisphere.Response, error)
}

// Desired is the requested state of a host.
type Desired struct {
	Name       string
	Initiators []string
	State      reconcile.State
}

// Resource reconciles a single host.
type Resource struct {
	symmID  string
	hostID  string
	desired Desired
	api     API
	wait    unisphere.WaitConfig

	// Internal state populated by Load()
	exists bool
}

// NewResource creates a new host resource. The name is uppercased.
func NewResource(api API, symmID string, desired Desired, wait unisphere.WaitConfig) *Resource {
	return &Resource{
		symmID:  symmID,
		hostID:  reconcile.NormalizeID(desired.Name),
		desired: desired,
		api:     api,
		wait:    wait,
	}
}

// Key returns the resource key.
func (r *Resource) Key() reconcile.ResourceKey {
	return reconcile.ResourceKey{Kind: reconcile.KindHost, SymmID: r.symmID, ID: r.hostID}
}

// Desired returns the requested state.
func (r *Resource) Desired() reconcile.State {
	return r.desired.State
}

// Load checks whether the host exists.
func (r *Resource) Load(ctx context.Context) error {
	resp, err := r.api.GetHost(ctx, r.symmID, r.hostID)
	if err != nil {
		return fmt.Errorf("get host %s: %w", r.hostID, err)
	}

	r.exists, err = reconcile.Exists("get host "+r.hostID, resp)
	return err
}

// NeedsReconcile returns true if actual != desired.
func (r *Resource) NeedsReconcile() bool {
	return reconcile.DetermineAction(r.desired.State, r.exists) != reconcile.ActionNone
}

// ReconcileStep creates or deletes the host.
func (r *Resource) ReconcileStep(ctx context.Context) error {
	action := reconcile.DetermineAction(r.desired.State, r.exists)

	log.Debug().
		Str("host", r.hostID).
		Bool("exists", r.exists).
		Str("action", action.String()).
		Msg("Host reconcile step")

	switch action {
	case reconcile.ActionCreate:
		return r.create(ctx)
	case reconcile.ActionDelete:
		return r.delete(ctx)
	}
	return nil
}

func (r *Resource) create(ctx context.Context) error {
	if len(r.desired.Initiators) == 0 {
		return fmt.Errorf("create host %s: at least one initiator is required", r.hostID)
	}

	resp, err := r.api.CreateHost(ctx, r.symmID, unisphere.CreateHostParams{
		HostID:      r.hostID,
		InitiatorID: r.desired.Initiators,
	})
	if err != nil {
		return fmt.Errorf("create host %s: %w", r.hostID, err)
	}
	if err := reconcile.CheckCreated("create host "+r.hostID, resp); err != nil {
		return err
	}

	r.exists = true
	return nil
}

func (r *Resource) delete(ctx context.Context) error {
	resp, err := r.api.DeleteHost(ctx, r.symmID, r.hostID)
	if err != nil {
		return fmt.Errorf("delete host %s: %w", r.hostID, err)
	}

	err = reconcile.ConfirmDeleted(ctx, "delete host "+r.hostID, resp, func(ctx context.Context) (*unisphere.Response, error) {
		return r.api.WaitHostGone(ctx, r.symmID, r.hostID, r.wait)
	})
	if err != nil {
		return err
	}

	r.exists = false
	return nil
}
