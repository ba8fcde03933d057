// Package session provides Redis-backed server-side sessions.
//
// A [Session] is a per-request handle holding string values and append-only
// lists (for example queued feedback messages). The [Store] loads, saves,
// regenerates and destroys sessions; values are JSON-encoded under
// "<prefix>:<session id>" with a sliding TTL refreshed on every save.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It does NOT
// decide who is logged in or enforce authentication policy; those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authkit (no upward imports).
//   - Store plaintext passwords or remember-me tokens in [Session] values.
package session
