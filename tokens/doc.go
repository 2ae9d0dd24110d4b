// Package tokens issues and validates purpose-bound tokens for email flows:
// password reset, set-password and email verification.
//
// Each token is a random alphanumeric string stored in the token store under
// "{purpose}:{token}" with a per-purpose TTL. The TTL is the only expiry
// mechanism. A token is only meaningful for the purpose it was created for:
// the purpose is part of the key, so a password_reset token can never be
// redeemed as an email_verify token.
//
// Whether validation consumes the token is a deployment policy
// (Config.SingleUse).
package tokens
