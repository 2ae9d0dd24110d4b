package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef names one authcore counter for exporters.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one authcore latency histogram for exporters.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricSignInSuccess, Name: "authcore_sign_in_success_total", Help: "Successful credential sign-ins."},
	{ID: authcore.MetricSignInFailure, Name: "authcore_sign_in_failure_total", Help: "Rejected credential sign-ins."},
	{ID: authcore.MetricSignInRateLimited, Name: "authcore_sign_in_rate_limited_total", Help: "Sign-ins refused by the throttle."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected for a used email."},
	{ID: authcore.MetricPasswordChanged, Name: "authcore_password_changed_total", Help: "Password changes, resets and first passwords."},
	{ID: authcore.MetricEmailVerified, Name: "authcore_email_verified_total", Help: "Email verification flag updates."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created session entries."},
	{ID: authcore.MetricSessionRefreshed, Name: "authcore_session_refreshed_total", Help: "Sliding expiry extensions."},
	{ID: authcore.MetricSessionRevoked, Name: "authcore_session_revoked_total", Help: "Session entries removed by sign-out."},
	{ID: authcore.MetricSessionCookieCleared, Name: "authcore_session_cookie_cleared_total", Help: "Requests whose stale session cookies were cleared."},
	{ID: authcore.MetricPurposeTokenIssued, Name: "authcore_purpose_token_issued_total", Help: "Issued password reset, set-password and verification tokens."},
	{ID: authcore.MetricPurposeTokenValidated, Name: "authcore_purpose_token_validated_total", Help: "Purpose tokens that validated."},
	{ID: authcore.MetricPurposeTokenRejected, Name: "authcore_purpose_token_rejected_total", Help: "Purpose tokens that were malformed, unknown or expired."},
	{ID: authcore.MetricBearerInvalid, Name: "authcore_bearer_invalid_total", Help: "Bearer tokens that failed verification."},
	{ID: authcore.MetricOAuthPreflight, Name: "authcore_oauth_preflight_total", Help: "Started OAuth logins."},
	{ID: authcore.MetricOAuthCallbackSuccess, Name: "authcore_oauth_callback_success_total", Help: "Completed OAuth logins."},
	{ID: authcore.MetricOAuthCallbackFailure, Name: "authcore_oauth_callback_failure_total", Help: "Failed OAuth callbacks."},
	{ID: authcore.MetricOAuthAccountLinked, Name: "authcore_oauth_account_linked_total", Help: "Provider accounts linked to a local user."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricResolveLatency, Name: "authcore_session_resolve_latency_seconds", Help: "Request session resolution latency."},
}

// HistogramBounds are the upper bounds of the authcore latency buckets in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as metric name suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
