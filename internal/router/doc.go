// Package router implements the metadata-command routing core of Metaroute:
// deciding which cluster members must execute a schema or metadata mutation
// (index creation, index rebuild, index removal, collection-option changes,
// collection creation) and folding their individual outcomes into one
// client-visible result.
//
// # Pipeline
//
// A command flows through four stages:
//
//	Classify ──▶ ResolveTargets ──▶ Execute ──▶ Aggregate
//
// Classify maps the command kind to its targeting mode and suppressible-error
// set; it is a pure table lookup consulted before any network activity.
// ResolveTargets computes the member set from one fresh topology snapshot.
// Execute fans the command out concurrently, one goroutine per target, and
// collects exactly one result per member. Aggregate applies the suppression
// policy to produce the overall verdict while retaining every member's raw
// response for diagnostics.
//
// # Targeting
//
// The targeting mode is static per command kind. TargetPrimary goes to the
// namespace's designated primary regardless of partitioning state.
// TargetOwners goes to the primary while the namespace is unpartitioned and
// switches to the range-owning member set once it is partitioned — evaluated
// fresh on every command, so callers never notice the transition.
//
// # Suppression
//
// Broadcast commands tolerate certain per-member failures: a member that owns
// no data for a namespace may legitimately never have materialized the
// collection (or, for creation-style commands, even the database) locally.
// Such coded failures are declared suppressible per command kind. Suppression
// is strictly a verdict-level decision: the raw result map always carries one
// untouched entry per resolved target.
//
// # Failure taxonomy
//
//   - Classification and resolution errors (unknown kind, unknown namespace)
//     are fatal and returned before any dispatch.
//   - Per-member transport or remote errors are recoverable at the aggregate
//     level via suppression and are never retried here; retry is a caller
//     concern.
//   - A non-suppressed member failure becomes the overall error, selected by
//     lowest member ID among the non-ignorable failures so results are
//     reproducible regardless of response arrival order.
//
// Nothing in this package silently drops information.
package router
