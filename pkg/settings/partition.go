package settings

import (
	"fmt"
	"strings"

	"github.com/celerix-dev/celerix-settings/pkg/engine"
)

type partitionKind uint8

const (
	standardPartition partitionKind = iota
	authPartition
	customPartition
)

// PartitionID names a logical partition. The zero value is Standard.
type PartitionID struct {
	kind partitionKind
	name string
}

var (
	// Standard is the engine's default partition.
	Standard = PartitionID{}
	// AuthScoped holds credentials and other auth-related state.
	AuthScoped = PartitionID{kind: authPartition}
)

// Custom returns the partition with the given name.
func Custom(name string) PartitionID {
	return PartitionID{kind: customPartition, name: name}
}

// Namespace returns the engine namespace for p under bundleID.
func (p PartitionID) Namespace(bundleID string) string {
	switch p.kind {
	case authPartition:
		return "AuthRelated_" + bundleID
	case customPartition:
		return "Custom_" + p.name + "_" + bundleID
	default:
		return engine.DefaultNamespace
	}
}

// String renders p as accepted by ParsePartitionID.
func (p PartitionID) String() string {
	switch p.kind {
	case authPartition:
		return "auth"
	case customPartition:
		return "custom:" + p.name
	default:
		return "standard"
	}
}

// ParsePartitionID parses "standard" (or ""), "auth" and "custom:<name>".
func ParsePartitionID(s string) (PartitionID, error) {
	switch {
	case s == "" || s == "standard":
		return Standard, nil
	case s == "auth":
		return AuthScoped, nil
	case strings.HasPrefix(s, "custom:"):
		return Custom(strings.TrimPrefix(s, "custom:")), nil
	}
	return PartitionID{}, fmt.Errorf("settings: unknown partition %q", s)
}

// Resolver maps PartitionIDs to engine partitions. Handles are opened per
// call; every handle for one namespace sees the same data.
type Resolver struct {
	engine   engine.Engine
	bundleID string
}

// NewResolver returns a resolver over e that derives namespaces from bundleID.
func NewResolver(e engine.Engine, bundleID string) *Resolver {
	return &Resolver{engine: e, bundleID: bundleID}
}

// BundleID returns the bundle id namespaces are derived from.
func (r *Resolver) BundleID() string { return r.bundleID }

// Resolve opens the partition for id. Failures wrap ErrCannotOpenPartition.
func (r *Resolver) Resolve(id PartitionID) (engine.Partition, error) {
	ns := id.Namespace(r.bundleID)
	part, err := r.engine.Partition(ns)
	if err != nil {
		return nil, fmt.Errorf("%w %s (namespace %q): %w", ErrCannotOpenPartition, id, ns, err)
	}
	return part, nil
}
