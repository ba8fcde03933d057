// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] also accepts bcrypt hashes imported from older deployments
// ($2a$, $2b$, $2y$). [Hasher.NeedsRehash] reports true for those and for
// Argon2id hashes produced with weaker parameters, so the caller can re-hash
// on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, repeat confirmation) is enforced by the Engine.
package password
