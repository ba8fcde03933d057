// Package internal contains helper utilities that are intentionally private to authkit,
// chiefly secure random generation for session ids, remember-me tokens, link hashes
// and captcha codes.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - rate: Redis-backed fixed-window request throttle
//   - httpapi: echo handlers used by cmd/authkit-server
//
// # What this package must NOT do
//
//   - Export types that appear in the public authkit API.
//   - Be imported by any package outside the authkit module.
package internal
