// Package jwt issues and verifies the compact signed bearer tokens used for
// stateless API authentication. A token carries the user id as its subject
// plus issued-at, expiry and a unique id; verification is strict: a single
// allowed algorithm, mandatory expiry, optional issuer/audience/kid checks.
package jwt
