// Package rate provides a Redis-backed fixed-window throttle for
// mail-sending authentication workflows (registration, invitation and
// password recovery requests).
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// "<prefix>:<action>:<key>", where key is usually the client IP.
//
// # What this package must NOT do
//
//   - Decide which workflows are throttled (the Engine does).
//   - Be imported outside the authkit module.
package rate
