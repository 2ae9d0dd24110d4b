// Package authcore is the authentication and session-lifecycle core of a web
// backend: credential sign-up and sign-in, Redis-backed cookie sessions with
// sliding expiration, OAuth login orchestration, purpose-bound email tokens
// and signed bearer tokens.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy ([Error], [Code]) and DTOs. Each concern lives in its own
// sub-package (session, tokens, tokenstore, jwt, password, oauth, user) and
// never imports the root package.
//
// # Identity is explicit
//
// There is no ambient "current user". The transport resolves an
// [session.Identity] once per request (see the middleware package) and passes
// it into every Engine call that needs it.
//
// # Errors
//
// Every failure returned by an Engine method is an [*Error] from a closed set
// of codes. [StatusCode] maps it to an HTTP status and [PublicMessage] to a
// client-safe message. Recoverable conditions such as a stale session cookie
// are resolved locally and never returned.
package authcore
