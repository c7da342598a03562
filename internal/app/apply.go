package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dokzlo13/unictl/internal/lua"
	"github.com/dokzlo13/unictl/internal/manifest"
	"github.com/dokzlo13/unictl/internal/reconcile"
	"github.com/dokzlo13/unictl/internal/reconcile/host"
	"github.com/dokzlo13/unictl/internal/reconcile/storagegroup"
)

// ApplyHost reconciles a single host.
func (a *App) ApplyHost(ctx context.Context, p manifest.HostParams) (reconcile.Result, error) {
	if err := manifest.ValidateHost(&p); err != nil {
		return reconcile.Result{}, err
	}
	return a.applyOne(ctx, &manifest.Manifest{Hosts: []manifest.HostParams{p}})
}

// ApplyStorageGroup reconciles a single storage group.
func (a *App) ApplyStorageGroup(ctx context.Context, p manifest.StorageGroupParams) (reconcile.Result, error) {
	if err := manifest.ValidateStorageGroup(&p); err != nil {
		return reconcile.Result{}, err
	}
	return a.applyOne(ctx, &manifest.Manifest{StorageGroups: []manifest.StorageGroupParams{p}})
}

func (a *App) applyOne(ctx context.Context, m *manifest.Manifest) (reconcile.Result, error) {
	results, err := a.Apply(ctx, m)
	if err != nil {
		return reconcile.Result{}, err
	}
	return results[0], nil
}

// Apply reconciles every resource of a validated manifest, hosts first.
// Results of resources finished before a failure are returned with the error.
func (a *App) Apply(ctx context.Context, m *manifest.Manifest) ([]reconcile.Result, error) {
	symmID := m.SymmID
	if symmID == "" {
		symmID = a.cfg.Unisphere.SymmID
	}
	if symmID == "" {
		return nil, ErrNoSymmID
	}

	wait := a.waitConfig()
	resources := make([]reconcile.Resource, 0, m.Len())
	for _, p := range m.Hosts {
		resources = append(resources, host.NewResource(a.client, symmID, p.Desired(), wait))
	}
	for _, p := range m.StorageGroups {
		resources = append(resources, storagegroup.NewResource(a.client, symmID, p.Desired(), wait))
	}

	return a.orchestrator().Run(ctx, resources)
}

// LoadManifest reads a manifest, choosing the format by file extension.
func LoadManifest(path string) (*manifest.Manifest, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return manifest.LoadYAML(path)
	case ".lua":
		return lua.LoadManifest(path)
	default:
		return nil, fmt.Errorf("unsupported manifest extension %q: want .yaml, .yml or .lua", ext)
	}
}
