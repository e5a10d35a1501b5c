package catalog

import (
	"strings"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/dreamware/metaroute/internal/cluster"
)

// Index is one secondary index on a collection. Keys maps field names to sort
// direction (1 ascending, -1 descending).
type Index struct {
	Name   string         `json:"name"`
	Keys   map[string]int `json:"keys"`
	Unique bool           `json:"unique,omitempty"`
}

// sameSpec reports whether two indexes are byte-for-byte the same definition.
func (i Index) sameSpec(other Index) bool {
	return i.Name == other.Name && i.Unique == other.Unique && maps.Equal(i.Keys, other.Keys)
}

// CollectionInfo is a read-only view of one collection's metadata.
type CollectionInfo struct {
	Namespace string         `json:"namespace"`
	Options   map[string]any `json:"options,omitempty"`
	Indexes   []Index        `json:"indexes"`
}

// Stats counts metadata operations executed by this catalog.
type Stats struct {
	CollectionCreates uint64 `json:"collection_creates"`
	IndexCreates      uint64 `json:"index_creates"`
	IndexDrops        uint64 `json:"index_drops"`
	Reindexes         uint64 `json:"reindexes"`
	CollMods          uint64 `json:"coll_mods"`
}

type collection struct {
	options map[string]any
	indexes map[string]Index
}

type database struct {
	collections map[string]*collection
}

// Catalog is a member-local, in-memory metadata catalog: databases holding
// collections holding index definitions and options. It is the member-side
// collaborator the router's commands ultimately execute against.
//
// All coded failures are *cluster.CommandError values so they cross the wire
// unchanged; the distinction between DatabaseNotFound and NamespaceNotFound
// matters to the router's suppression policy and must be preserved.
//
// Thread-safe: a single RWMutex guards the database tree.
type Catalog struct {
	mu        sync.RWMutex
	databases map[string]*database

	collectionCreates atomic.Uint64
	indexCreates      atomic.Uint64
	indexDrops        atomic.Uint64
	reindexes         atomic.Uint64
	collMods          atomic.Uint64
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{databases: make(map[string]*database)}
}

// splitNamespace parses "db.collection". The collection part may itself
// contain dots, so only the first dot separates.
func splitNamespace(namespace string) (string, string, error) {
	db, coll, ok := strings.Cut(namespace, ".")
	if !ok || db == "" || coll == "" {
		return "", "", cluster.Errf(cluster.CodeInvalidNamespace, "invalid namespace %q", namespace)
	}
	return db, coll, nil
}

// lookup returns the collection for a namespace, distinguishing a missing
// database from a missing collection. Callers must hold the lock.
func (c *Catalog) lookup(namespace string) (*collection, error) {
	db, coll, err := splitNamespace(namespace)
	if err != nil {
		return nil, err
	}
	d, ok := c.databases[db]
	if !ok {
		return nil, cluster.Errf(cluster.CodeDatabaseNotFound, "database %q does not exist", db)
	}
	col, ok := d.collections[coll]
	if !ok {
		return nil, cluster.Errf(cluster.CodeNamespaceNotFound, "ns %q not found", namespace)
	}
	return col, nil
}

// CreateCollection materializes a collection, implicitly creating its
// database. Creating an existing collection fails with NamespaceExists.
func (c *Catalog) CreateCollection(namespace string, options map[string]any) error {
	db, coll, err := splitNamespace(namespace)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.databases[db]
	if !ok {
		d = &database{collections: make(map[string]*collection)}
		c.databases[db] = d
	}
	if _, ok := d.collections[coll]; ok {
		return cluster.Errf(cluster.CodeNamespaceExists, "ns %q already exists", namespace)
	}

	d.collections[coll] = &collection{
		options: maps.Clone(options),
		indexes: make(map[string]Index),
	}
	c.collectionCreates.Inc()
	return nil
}

// CreateIndex adds an index to an existing collection. Re-creating an index
// with an identical spec succeeds idempotently (created=false); reusing a
// name with a different spec fails with IndexOptionsConflict. The collection
// is never implicitly created: a missing database or collection surfaces as
// its own coded error for the router to judge.
func (c *Catalog) CreateIndex(namespace string, idx Index) (created bool, err error) {
	if idx.Name == "" || len(idx.Keys) == 0 {
		return false, cluster.Errf(cluster.CodeInvalidOptions, "index name and keys are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	col, err := c.lookup(namespace)
	if err != nil {
		return false, err
	}

	if existing, ok := col.indexes[idx.Name]; ok {
		if existing.sameSpec(idx) {
			return false, nil
		}
		return false, cluster.Errf(cluster.CodeIndexOptionsConflict,
			"index %q already exists with a different spec", idx.Name)
	}

	col.indexes[idx.Name] = Index{
		Name:   idx.Name,
		Keys:   maps.Clone(idx.Keys),
		Unique: idx.Unique,
	}
	c.indexCreates.Inc()
	return true, nil
}

// DropIndex removes an index by name.
func (c *Catalog) DropIndex(namespace, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, err := c.lookup(namespace)
	if err != nil {
		return err
	}
	if _, ok := col.indexes[name]; !ok {
		return cluster.Errf(cluster.CodeIndexNotFound, "index %q not found on %q", name, namespace)
	}

	delete(col.indexes, name)
	c.indexDrops.Inc()
	return nil
}

// Reindex rebuilds every index on a collection and returns how many were
// rebuilt. The in-memory catalog has nothing to physically rebuild, so this
// only validates existence and counts, which is all the routing layer needs.
func (c *Catalog) Reindex(namespace string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, err := c.lookup(namespace)
	if err != nil {
		return 0, err
	}

	c.reindexes.Inc()
	return len(col.indexes), nil
}

// SetOptions merges the given options into a collection's options. A nil
// value removes the option.
func (c *Catalog) SetOptions(namespace string, options map[string]any) error {
	if len(options) == 0 {
		return cluster.Errf(cluster.CodeInvalidOptions, "no options given")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	col, err := c.lookup(namespace)
	if err != nil {
		return err
	}

	if col.options == nil {
		col.options = make(map[string]any)
	}
	for k, v := range options {
		if v == nil {
			delete(col.options, k)
			continue
		}
		col.options[k] = v
	}
	c.collMods.Inc()
	return nil
}

// Collection returns a read-only view of one collection's metadata.
func (c *Catalog) Collection(namespace string) (CollectionInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	col, err := c.lookup(namespace)
	if err != nil {
		return CollectionInfo{}, err
	}
	return c.infoLocked(namespace, col), nil
}

// Collections returns every collection in the catalog, sorted by namespace.
func (c *Catalog) Collections() []CollectionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []CollectionInfo
	for dbName, d := range c.databases {
		for collName, col := range d.collections {
			out = append(out, c.infoLocked(dbName+"."+collName, col))
		}
	}
	slices.SortFunc(out, func(a, b CollectionInfo) int {
		return strings.Compare(a.Namespace, b.Namespace)
	})
	return out
}

func (c *Catalog) infoLocked(namespace string, col *collection) CollectionInfo {
	info := CollectionInfo{
		Namespace: namespace,
		Options:   maps.Clone(col.options),
		Indexes:   make([]Index, 0, len(col.indexes)),
	}
	for _, idx := range col.indexes {
		info.Indexes = append(info.Indexes, Index{
			Name:   idx.Name,
			Keys:   maps.Clone(idx.Keys),
			Unique: idx.Unique,
		})
	}
	slices.SortFunc(info.Indexes, func(a, b Index) int {
		return strings.Compare(a.Name, b.Name)
	})
	return info
}

// Stats returns a snapshot of the operation counters.
func (c *Catalog) Stats() Stats {
	return Stats{
		CollectionCreates: c.collectionCreates.Load(),
		IndexCreates:      c.indexCreates.Load(),
		IndexDrops:        c.indexDrops.Load(),
		Reindexes:         c.reindexes.Load(),
		CollMods:          c.collMods.Load(),
	}
}
