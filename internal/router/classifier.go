package router

import (
	"fmt"

	"github.com/dreamware/metaroute/internal/cluster"
)

// CommandKind identifies a metadata command. The set of kinds is closed; an
// unrecognized kind is a configuration error, not a runtime condition.
type CommandKind string

const (
	KindCreateIndex      CommandKind = "create-index"
	KindReindex          CommandKind = "reindex"
	KindDropIndex        CommandKind = "drop-index"
	KindModCollection    CommandKind = "mod-collection"
	KindCreateCollection CommandKind = "create-collection"
)

// TargetingMode decides which members receive a command. It is a static
// property of the command kind, never of the namespace's current state.
type TargetingMode int

const (
	// TargetPrimary sends the command to the namespace's designated primary
	// only, regardless of partitioning state.
	TargetPrimary TargetingMode = iota

	// TargetOwners broadcasts the command to every member owning at least one
	// range of the namespace (the primary alone when unpartitioned).
	TargetOwners
)

func (m TargetingMode) String() string {
	switch m {
	case TargetPrimary:
		return "primary"
	case TargetOwners:
		return "owners"
	default:
		return fmt.Sprintf("TargetingMode(%d)", int(m))
	}
}

// Suppressible is the set of member error codes that do not fail the overall
// command. Suppression affects only the verdict; raw per-member results are
// always retained in full.
type Suppressible map[cluster.Code]bool

// Policy is the routing policy of one command kind.
type Policy struct {
	Mode         TargetingMode
	Suppressible Suppressible
}

// policies maps each command kind to its policy. Two suppression shapes
// exist:
//
//   - Creation-style commands tolerate the target database or collection not
//     existing yet on a member, since an owner of an unpopulated range may
//     never have implicitly created either.
//   - Existing-object commands tolerate only a missing collection, the
//     legitimate state of a member that owns no range and so never
//     materialized it locally. A missing database still fails them.
//
// New command kinds are added by declaring a policy here, not by branching
// in the routing path.
var policies = map[CommandKind]Policy{
	KindCreateIndex: {
		Mode: TargetOwners,
		Suppressible: Suppressible{
			cluster.CodeDatabaseNotFound:  true,
			cluster.CodeNamespaceNotFound: true,
		},
	},
	KindReindex: {
		Mode: TargetOwners,
		Suppressible: Suppressible{
			cluster.CodeNamespaceNotFound: true,
		},
	},
	KindDropIndex: {
		Mode: TargetOwners,
		Suppressible: Suppressible{
			cluster.CodeNamespaceNotFound: true,
		},
	},
	KindModCollection: {
		Mode: TargetOwners,
		Suppressible: Suppressible{
			cluster.CodeNamespaceNotFound: true,
		},
	},
	KindCreateCollection: {
		Mode:         TargetPrimary,
		Suppressible: Suppressible{},
	},
}

// Classify returns the targeting mode and suppressible-error set for a
// command kind. It is pure and must be consulted before any network
// activity; an unknown kind is fatal and nothing is dispatched.
func Classify(kind CommandKind) (Policy, error) {
	policy, ok := policies[kind]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownCommandKind, kind)
	}
	return policy, nil
}
