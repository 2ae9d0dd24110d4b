// Package internal contains helper utilities that are private to authcore,
// mostly secure random generation for tokens, state nonces and keys.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - rate: Redis-backed fixed-window counters for sign-in throttling
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Use math/rand for anything security relevant.
package internal
