// Package rate implements the Redis fixed-window counter that throttles
// failed sign-in attempts.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Keys are "si:<identifier>"
// under an optional prefix. Identifiers are normalized emails, so known and
// unknown accounts are throttled identically.
package rate
