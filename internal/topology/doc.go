// Package topology implements the Topology Directory: the authoritative,
// queryable record of which members exist, which member is the designated
// primary for each logical namespace, and, for partitioned namespaces, which
// members currently own at least one data range.
//
// # Data model
//
// A namespace is exactly one of two variants at any instant:
//
//   - Unpartitioned: all data and metadata live on a single designated
//     primary member.
//   - Partitioned: data is split into shard-key ranges, each owned by
//     exactly one member at a time.
//
// The unpartitioned-to-partitioned transition (ShardNamespace) is one-way.
// Range ownership changes only through migration events (AssignRange,
// MoveRange) driven by machinery external to the router.
//
// # Snapshots
//
// All routing decisions work from a State produced by a single Snapshot call.
// A State is copied out under one read lock, so a resolution call can never
// observe a half-applied migration. Nothing in this package is cached across
// commands: routers call Snapshot afresh for every command and deliberately
// tolerate the staleness between commands that this implies.
//
// # Liveness
//
// The Prober tracks member reachability for operational visibility (logs,
// the /members admin endpoint). It is intentionally not an input to target
// resolution: a member's liveness is only ever decided at dispatch time, by
// the dispatch itself failing or succeeding.
//
// # Concurrency
//
// Directory and Prober are safe for concurrent use. Reads take a shared lock
// and return defensive copies; mutations take the exclusive lock. No lock is
// held across network calls.
package topology
