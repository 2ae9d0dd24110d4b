// Package sqlite implements user.Repository on SQLite through the pure-Go
// modernc.org/sqlite driver. Timestamps are stored as UTC milliseconds.
package sqlite
