// Package manifest describes the resources a run should reconcile and
// validates them before any call reaches the array.
package manifest

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/dokzlo13/unictl/internal/config"
	"github.com/dokzlo13/unictl/internal/reconcile"
	"github.com/dokzlo13/unictl/internal/reconcile/host"
	"github.com/dokzlo13/unictl/internal/reconcile/storagegroup"
)

// Only presence and the desired state are checked; formats are left to the array.
var validate = validator.New()

// HostParams declares one host.
type HostParams struct {
	Name       string   `yaml:"name" validate:"required"`
	Initiators []string `yaml:"initiators" validate:"required_if=State present,dive,required"`
	State      string   `yaml:"state" validate:"required,oneof=present absent"`
}

// StorageGroupParams declares one storage group.
type StorageGroupParams struct {
	Name      string `yaml:"name" validate:"required"`
	SRP       string `yaml:"srp"`
	Emulation string `yaml:"emulation"`
	State     string `yaml:"state" validate:"required,oneof=present absent"`
}

// Manifest is a set of resources reconciled in one run.
type Manifest struct {
	SymmID        string               `yaml:"symm_id"` // overrides the configured array
	Hosts         []HostParams         `yaml:"hosts" validate:"dive"`
	StorageGroups []StorageGroupParams `yaml:"storage_groups" validate:"dive"`
}

// Len returns the number of declared resources.
func (m *Manifest) Len() int {
	return len(m.Hosts) + len(m.StorageGroups)
}

// Validate checks every declared resource.
func (m *Manifest) Validate() error {
	for i := range m.Hosts {
		normalizeInitiators(&m.Hosts[i])
	}
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// ValidateHost checks a single host declaration.
func ValidateHost(p *HostParams) error {
	normalizeInitiators(p)
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// ValidateStorageGroup checks a single storage group declaration.
func ValidateStorageGroup(p *StorageGroupParams) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// An empty list is treated as missing so required_if catches it.
func normalizeInitiators(p *HostParams) {
	if len(p.Initiators) == 0 {
		p.Initiators = nil
	}
}

// Desired converts validated params into the host reconciler's input.
func (p HostParams) Desired() host.Desired {
	state, _ := reconcile.ParseState(p.State)
	return host.Desired{
		Name:       p.Name,
		Initiators: p.Initiators,
		State:      state,
	}
}

// Desired converts validated params into the storage group reconciler's input.
func (p StorageGroupParams) Desired() storagegroup.Desired {
	state, _ := reconcile.ParseState(p.State)
	return storagegroup.Desired{
		Name:      p.Name,
		SRP:       p.SRP,
		Emulation: p.Emulation,
		State:     state,
	}
}

// LoadYAML reads a YAML manifest, expanding ${VAR} references.
func LoadYAML(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := config.UnmarshalExpanded(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}
