package topology

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/dreamware/metaroute/internal/cluster"
)

var (
	// ErrUnknownNamespace is returned when a namespace has never been created
	// in the directory. Callers treat this as fatal: no command is dispatched.
	ErrUnknownNamespace = errors.New("unknown namespace")

	// ErrUnknownMember is returned when an operation names a member that was
	// never registered.
	ErrUnknownMember = errors.New("unknown member")

	// ErrNamespaceExists is returned when creating a namespace twice.
	ErrNamespaceExists = errors.New("namespace already exists")

	// ErrAlreadyPartitioned is returned when sharding a namespace twice.
	// The unpartitioned-to-partitioned transition is one-way.
	ErrAlreadyPartitioned = errors.New("namespace already partitioned")

	// ErrNotPartitioned is returned when a range operation targets an
	// unpartitioned namespace.
	ErrNotPartitioned = errors.New("namespace not partitioned")

	// ErrRangeNotOwned is returned when migrating a range away from a member
	// that does not own it.
	ErrRangeNotOwned = errors.New("range not owned by member")
)

// Range is a contiguous shard-key interval owned by exactly one member at a
// time. End is exclusive.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// State is one snapshot-consistent view of a namespace, produced by a single
// directory read. Target resolution works entirely from a State so that one
// resolution call can never observe a half-applied migration.
//
// Invariants:
//   - Exactly one of the two variants holds: Partitioned is false and Owners
//     is empty, or Partitioned is true and Ranges describes ownership.
//   - Owners lists only members with at least one range, sorted by member ID.
//   - Primary is always populated, partitioned or not.
type State struct {
	Namespace   string             `json:"namespace"`
	Partitioned bool               `json:"partitioned"`
	ShardKey    string             `json:"shard_key,omitempty"`
	Primary     cluster.Member     `json:"primary"`
	Owners      []cluster.Member   `json:"owners,omitempty"`
	Ranges      map[string][]Range `json:"ranges,omitempty"`
}

// namespaceState is the directory's internal record for one namespace.
// Members are referenced by ID; addresses are resolved at snapshot time so a
// re-registered member's new address is picked up automatically.
type namespaceState struct {
	primary     string
	partitioned bool
	shardKey    string
	ranges      map[string][]Range
}

// Directory is the authoritative, queryable record of which members exist,
// which member is the designated primary for each namespace, and, for
// partitioned namespaces, which members currently own at least one range.
//
// Concurrency model:
//   - Read operations take RLock and return defensive copies.
//   - Mutations (registration, sharding, migrations) take the write lock.
//   - No lock is held across external calls; routers deliberately tolerate
//     staleness between commands and re-read per command.
type Directory struct {
	mu         sync.RWMutex
	members    map[string]cluster.Member
	namespaces map[string]*namespaceState
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		members:    make(map[string]cluster.Member),
		namespaces: make(map[string]*namespaceState),
	}
}

// RegisterMember adds a member to the directory or updates its address if the
// ID is already known.
func (d *Directory) RegisterMember(m cluster.Member) error {
	if m.ID == "" || m.Addr == "" {
		return errors.New("member ID and address are required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.ID] = m
	return nil
}

// Members returns all registered members sorted by ID.
func (d *Directory) Members() []cluster.Member {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := maps.Values(d.members)
	slices.SortFunc(out, func(a, b cluster.Member) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Member looks up a registered member by ID.
func (d *Directory) Member(id string) (cluster.Member, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[id]
	return m, ok
}

// CreateNamespace records a new unpartitioned namespace with the given
// primary member.
func (d *Directory) CreateNamespace(namespace, primaryID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.namespaces[namespace]; ok {
		return fmt.Errorf("%w: %s", ErrNamespaceExists, namespace)
	}
	if _, ok := d.members[primaryID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMember, primaryID)
	}

	d.namespaces[namespace] = &namespaceState{
		primary: primaryID,
		ranges:  make(map[string][]Range),
	}
	return nil
}

// ShardNamespace transitions a namespace from unpartitioned to partitioned
// with the given shard key. The transition is one-way; sharding an already
// partitioned namespace fails with ErrAlreadyPartitioned.
//
// Immediately after the transition no ranges are assigned anywhere; resolvers
// fall back to the primary until the first migration lands.
func (d *Directory) ShardNamespace(namespace, shardKey string) error {
	if shardKey == "" {
		return errors.New("shard key is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ns, ok := d.namespaces[namespace]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, namespace)
	}
	if ns.partitioned {
		return fmt.Errorf("%w: %s", ErrAlreadyPartitioned, namespace)
	}

	ns.partitioned = true
	ns.shardKey = shardKey
	return nil
}

// AssignRange records that member owns r for the namespace. This models a
// migration (or initial placement) completing; it is driven by machinery
// external to the router.
func (d *Directory) AssignRange(namespace, memberID string, r Range) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ns, ok := d.namespaces[namespace]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, namespace)
	}
	if !ns.partitioned {
		return fmt.Errorf("%w: %s", ErrNotPartitioned, namespace)
	}
	if _, ok := d.members[memberID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMember, memberID)
	}

	ns.ranges[memberID] = append(ns.ranges[memberID], r)
	return nil
}

// MoveRange transfers ownership of r from one member to another, modeling a
// completed range migration. Ownership is exclusive, so the range must
// currently belong to the source member.
func (d *Directory) MoveRange(namespace string, r Range, fromID, toID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ns, ok := d.namespaces[namespace]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, namespace)
	}
	if !ns.partitioned {
		return fmt.Errorf("%w: %s", ErrNotPartitioned, namespace)
	}
	if _, ok := d.members[toID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMember, toID)
	}

	owned := ns.ranges[fromID]
	idx := slices.Index(owned, r)
	if idx < 0 {
		return fmt.Errorf("%w: %s does not own [%s, %s)", ErrRangeNotOwned, fromID, r.Start, r.End)
	}

	ns.ranges[fromID] = slices.Delete(owned, idx, idx+1)
	if len(ns.ranges[fromID]) == 0 {
		delete(ns.ranges, fromID)
	}
	ns.ranges[toID] = append(ns.ranges[toID], r)
	return nil
}

// Snapshot returns one consistent view of a namespace: its variant, primary,
// and (when partitioned) the members owning at least one range. All contained
// data is copied; mutating the returned State never touches the directory.
func (d *Directory) Snapshot(namespace string) (State, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ns, ok := d.namespaces[namespace]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownNamespace, namespace)
	}

	st := State{
		Namespace:   namespace,
		Partitioned: ns.partitioned,
		ShardKey:    ns.shardKey,
		Primary:     d.members[ns.primary],
	}
	if !ns.partitioned {
		return st, nil
	}

	st.Ranges = make(map[string][]Range, len(ns.ranges))
	for id, owned := range ns.ranges {
		if len(owned) == 0 {
			continue
		}
		st.Ranges[id] = slices.Clone(owned)
		if m, ok := d.members[id]; ok {
			st.Owners = append(st.Owners, m)
		}
	}
	slices.SortFunc(st.Owners, func(a, b cluster.Member) int {
		return strings.Compare(a.ID, b.ID)
	})
	return st, nil
}

// Namespaces returns all known namespace names, sorted.
func (d *Directory) Namespaces() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := maps.Keys(d.namespaces)
	slices.Sort(out)
	return out
}
