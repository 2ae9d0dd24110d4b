// Package oauth holds the third-party login building blocks: provider
// clients (GitHub, Google) on top of golang.org/x/oauth2, and the signed,
// single-use state records that protect the redirect round-trip against
// cross-site request forgery.
//
// The orchestration itself (account resolution, session issuing) lives in
// the root package. This package only talks to providers and the token store.
package oauth
