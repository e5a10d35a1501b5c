// Package cluster defines the shared vocabulary of the Metaroute cluster:
// member identity, the metadata-command wire protocol, and the HTTP/JSON
// helpers every daemon dials through.
//
// # Overview
//
// Metaroute is a coordinator-based topology. A central router decides which
// members must execute a metadata command and posts a CommandEnvelope to each
// of them; members answer with a CommandReply carrying either an opaque
// success payload or a coded CommandError.
//
//	              ┌──────────────┐
//	              │    Router    │
//	              │              │
//	              │ - Topology   │
//	              │ - Classifier │
//	              │ - Fan-out    │
//	              └──────┬───────┘
//	                     │ CommandEnvelope / CommandReply
//	      ┌──────────────┼──────────────┐
//	┌─────▼─────┐ ┌──────▼────┐ ┌───────▼───┐
//	│  Member A │ │  Member B │ │  Member C │
//	│  catalog  │ │  catalog  │ │  catalog  │
//	└───────────┘ └───────────┘ └───────────┘
//
// # Error codes
//
// A member reports failures as CommandError values whose Code is stable on
// the wire. The router's aggregation layer keys its suppression policy off
// these codes, so members must never remap or wrap them. Codes prefixed
// "Member"/"Exceeded" are local: they are synthesized by the router itself
// when a member could not be reached or ran past the fan-out deadline, and
// never appear in a CommandReply.
//
// # Communication
//
// All traffic is HTTP/JSON. PostJSON and GetJSON bind requests to the
// caller's context so command-level deadlines propagate into every dial.
// Transport-level failures (refused connections, non-2xx statuses) surface
// as plain errors; coded errors ride inside a 200 CommandReply.
package cluster
