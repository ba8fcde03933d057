// Package middleware exposes net/http adapters that bind an authkit.Engine
// to incoming requests.
//
// # Chain
//
//   - [Session] loads (or starts) the caller's session from its cookie,
//     stores the [authkit.Client] in the request context and commits the
//     session before the response header is written.
//   - [RequireSession] rejects anonymous and stale clients with 401.
//   - [RequireAdmin] additionally rejects non-administrators with 403.
//
// Guards must run after [Session]. Rejections are written as the JSON
// Result envelope.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not
// make authentication decisions itself; validity comes from
// Engine.CheckAuthentication.
package middleware
