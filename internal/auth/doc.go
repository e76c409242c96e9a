// Package auth provides account registration and bearer-token
// authentication for the hub's HTTP API.
//
// Passwords are hashed with Argon2id and stored in PHC string format.
// Sessions are stateless HS256 JWTs validated by signature and expiry
// alone; there is no refresh flow and no revocation list, which is an
// acceptable trade for a single-household deployment.
package auth
