// Package session implements cookie-backed sessions with sliding expiration
// on top of a Redis session repository.
//
// # Model
//
// A session id is an opaque value mirrored to the client in the session
// cookie. One session id may carry several [UserSession] entries, one per
// signed-in user, ordered by the time the user joined it. The first entry
// is the request's current user; the last is the most recently associated
// one (used when reissuing the user cookie after a sign-out).
//
// # Binary encoding
//
// Each entry is stored as a compact versioned record (v1: user id,
// createdAt, expiresAt in unix milliseconds).
//
// # Architecture boundaries
//
// The [Manager] decides which cookies a response carries and returns them;
// transport code writes them. The [Store] owns Redis operations and
// concurrency control: refresh is a compare-and-set on the stored expiry.
//
// # What this package must NOT do
//
//   - Import authcore (no upward imports).
//   - Write to http.ResponseWriter.
//   - Adopt a client-supplied session id that has no server record.
package session
