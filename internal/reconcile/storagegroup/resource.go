// Package storagegroup provides the reconciliation resource for storage groups.
package storagegroup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/unictl/internal/reconcile"
	"github.com/dokzlo13/unictl/internal/unisphere"
)

// DefaultSRP is the storage resource pool used when none is given.
const DefaultSRP = "SRP_1"

// API is the subset of the Unisphere client a storage group needs.
type API interface {
	GetStorageGroup(ctx context.Context, symmID, sgID string) (*unisphere.Response, error)
	CreateStorageGroup(ctx context.Context, symmID string, params unisphere.CreateStorageGroupParams) (*unisphere.Response, error)
	DeleteStorageGroup(ctx context.Context, symmID, sgID string) (*unisphere.Response, error)
	WaitStorageGroupGone(ctx context.Context, symmID, sgID string, cfg unisphere.WaitConfig) (*unisphere.Response, error)
}

// Desired is the requested state of a storage group.
type Desired struct {
	Name      string
	SRP       string // defaults to SRP_1
	Emulation string // optional, e.g. FBA
	State     reconcile.State
}

// Resource reconciles a single storage group.
type Resource struct {
	symmID  string
	sgID    string
	desired Desired
	api     API
	wait    unisphere.WaitConfig

	exists bool
}

// NewResource creates a new storage group resource. The name is uppercased.
func NewResource(api API, symmID string, desired Desired, wait unisphere.WaitConfig) *Resource {
	if desired.SRP == "" {
		desired.SRP = DefaultSRP
	}
	return &Resource{
		symmID:  symmID,
		sgID:    reconcile.NormalizeID(desired.Name),
		desired: desired,
		api:     api,
		wait:    wait,
	}
}

// Key returns the resource key.
func (r *Resource) Key() reconcile.ResourceKey {
	return reconcile.ResourceKey{Kind: reconcile.KindStorageGroup, SymmID: r.symmID, ID: r.sgID}
}

// Desired returns the requested state.
func (r *Resource) Desired() reconcile.State {
	return r.desired.State
}

// Load checks whether the storage group exists.
func (r *Resource) Load(ctx context.Context) error {
	resp, err := r.api.GetStorageGroup(ctx, r.symmID, r.sgID)
	if err != nil {
		return fmt.Errorf("get storage group %s: %w", r.sgID, err)
	}

	r.exists, err = reconcile.Exists("get storage group "+r.sgID, resp)
	return err
}

// NeedsReconcile returns true if actual != desired.
func (r *Resource) NeedsReconcile() bool {
	return reconcile.DetermineAction(r.desired.State, r.exists) != reconcile.ActionNone
}

// ReconcileStep creates or deletes the storage group.
func (r *Resource) ReconcileStep(ctx context.Context) error {
	action := reconcile.DetermineAction(r.desired.State, r.exists)

	log.Debug().
		Str("storage_group", r.sgID).
		Str("srp", r.desired.SRP).
		Bool("exists", r.exists).
		Str("action", action.String()).
		Msg("Storage group reconcile step")

	switch action {
	case reconcile.ActionCreate:
		resp, err := r.api.CreateStorageGroup(ctx, r.symmID, unisphere.CreateStorageGroupParams{
			SRPID:                   r.desired.SRP,
			StorageGroupID:          r.sgID,
			CreateEmptyStorageGroup: true,
			Emulation:               r.desired.Emulation,
		})
		if err != nil {
			return fmt.Errorf("create storage group %s: %w", r.sgID, err)
		}
		if err := reconcile.CheckCreated("create storage group "+r.sgID, resp); err != nil {
			return err
		}
		r.exists = true

	case reconcile.ActionDelete:
		resp, err := r.api.DeleteStorageGroup(ctx, r.symmID, r.sgID)
		if err != nil {
			return fmt.Errorf("delete storage group %s: %w", r.sgID, err)
		}
		err = reconcile.ConfirmDeleted(ctx, "delete storage group "+r.sgID, resp, func(ctx context.Context) (*unisphere.Response, error) {
			return r.api.WaitStorageGroupGone(ctx, r.symmID, r.sgID, r.wait)
		})
		if err != nil {
			return err
		}
		r.exists = false
	}

	return nil
}
