package router

import (
	"errors"
	"fmt"

	"github.com/dreamware/metaroute/internal/cluster"
	"github.com/dreamware/metaroute/internal/topology"
)

// ErrUnknownCommandKind is returned by Classify for a kind with no declared
// policy. This is a programming or configuration error, surfaced immediately.
var ErrUnknownCommandKind = errors.New("unknown command kind")

// TopologyReader is the slice of the Topology Directory the resolver needs.
// Every resolution performs exactly one Snapshot call, so one resolution
// always sees one consistent topology view.
type TopologyReader interface {
	Snapshot(namespace string) (topology.State, error)
}

// Resolver computes the exact member set that must receive a command, from a
// fresh topology snapshot per call. Nothing is cached across calls: a
// namespace partitioned between two commands switches broadcast targeting
// automatically without caller intervention.
type Resolver struct {
	dir TopologyReader
}

// NewResolver creates a resolver reading from dir.
func NewResolver(dir TopologyReader) *Resolver {
	return &Resolver{dir: dir}
}

// ResolveTargets returns the members that must execute a command on the
// namespace under the given targeting mode, sorted by member ID.
//
//   - TargetPrimary: the designated primary, whatever the partitioning state.
//   - TargetOwners, unpartitioned: the primary alone.
//   - TargetOwners, partitioned: every member owning at least one range.
//     Members owning nothing are excluded; contacting them would be wasted
//     work whose errors the suppression policy would mask anyway, and
//     excluding them keeps raw result sets minimal.
//   - TargetOwners, partitioned but no ranges assigned anywhere yet: the
//     primary alone, matching the before-any-migrations behavior.
//
// A namespace absent from the directory fails with
// topology.ErrUnknownNamespace; that error is fatal and never suppressed.
func (r *Resolver) ResolveTargets(namespace string, mode TargetingMode) ([]cluster.Member, error) {
	st, err := r.dir.Snapshot(namespace)
	if err != nil {
		return nil, fmt.Errorf("resolving targets for %s: %w", namespace, err)
	}

	switch mode {
	case TargetPrimary:
		return []cluster.Member{st.Primary}, nil
	case TargetOwners:
		if !st.Partitioned || len(st.Owners) == 0 {
			return []cluster.Member{st.Primary}, nil
		}
		return st.Owners, nil
	default:
		return nil, fmt.Errorf("unknown targeting mode %v", mode)
	}
}
