// Package middleware adapts an authcore.Engine to net/http.
//
// # Middleware
//
//   - [Session] resolves the session identity once per request and writes
//     the cookies the Engine decided on.
//   - [RequireUser] rejects requests [Session] resolved no user for.
//   - [RequireBearer] verifies an Authorization bearer token without
//     touching Redis.
//
// Handlers read the results back with [IdentityFromContext] and
// [BearerFromContext] and pass them explicitly into Engine calls.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not parse
// cookies or tokens itself and makes no decision beyond pass or reject.
package middleware
