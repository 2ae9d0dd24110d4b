// Package user defines the user record, third-party connected accounts and
// the repository contract the authentication core consumes. It also owns
// email normalization and validation so every caller compares emails the
// same way.
package user
