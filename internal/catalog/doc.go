// Package catalog implements a member-local, in-memory metadata catalog:
// the structure a cluster member mutates when it executes a routed metadata
// command.
//
// # Model
//
//	database ──▶ collection ──▶ { options, indexes }
//
// Namespaces use the "db.collection" form; the first dot separates the
// database from the collection name.
//
// # Error codes
//
// The catalog is deliberately precise about absence:
//
//   - DatabaseNotFound: the database has never been created on this member.
//   - NamespaceNotFound: the database exists but the collection does not.
//
// The router's suppression policy treats these differently per command kind,
// so the catalog must never collapse one into the other. Index-level
// conditions (IndexNotFound, IndexOptionsConflict) are always hard errors.
//
// # Idempotence
//
// CreateIndex with a spec identical to an existing index succeeds without
// effect. This is what makes repeated creation-style broadcasts safe: the
// second round observes the index already in place and reports success.
package catalog
