// Package tokenstore provides the Redis-backed secure token store: short-lived
// string values under caller-chosen keys, expired solely by Redis TTL.
//
// # Design
//
// Values are written with SET ... PX so the cache TTL is the only
// expiry authority; there is no secondary timestamp inside the value.
// Take performs get-and-delete inside a WATCH/MULTI optimistic transaction
// and retries on contention, so a value is handed out at most once.
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT generate tokens, decide
// key namespaces or interpret payloads; those belong to the tokens and
// oauth packages.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling package.
//   - Log stored values.
package tokenstore
