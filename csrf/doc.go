// Package csrf issues and verifies short-lived, scope-keyed form tokens.
//
// Tokens are HS256 JWTs bound to a hash of the server-side session id and a
// scope such as "login" or "admin". With OneShot enabled each token id is
// recorded in Redis on first use so a replayed token is rejected.
package csrf
