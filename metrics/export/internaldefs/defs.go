package internaldefs

import (
	"github.com/MrEthical07/authkit"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful password logins."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Failed password logins."},
	{ID: authkit.MetricLoginRateLimited, Name: "authkit_login_rate_limited_total", Help: "Logins refused by the failure counters."},
	{ID: authkit.MetricCookieLoginSuccess, Name: "authkit_cookie_login_success_total", Help: "Successful remember-me logins."},
	{ID: authkit.MetricCookieLoginFailure, Name: "authkit_cookie_login_failure_total", Help: "Rejected remember-me cookies."},
	{ID: authkit.MetricLogout, Name: "authkit_logout_total", Help: "Logouts."},
	{ID: authkit.MetricSessionStale, Name: "authkit_session_stale_total", Help: "Clients logged out because a newer session exists."},
	{ID: authkit.MetricTokenRejected, Name: "authkit_token_rejected_total", Help: "Rejected form tokens."},
	{ID: authkit.MetricRegistrationSuccess, Name: "authkit_registration_success_total", Help: "Completed self registrations."},
	{ID: authkit.MetricRegistrationFailure, Name: "authkit_registration_failure_total", Help: "Rejected self registrations."},
	{ID: authkit.MetricActivationSuccess, Name: "authkit_activation_success_total", Help: "Activated accounts."},
	{ID: authkit.MetricActivationFailure, Name: "authkit_activation_failure_total", Help: "Failed activations."},
	{ID: authkit.MetricInvitationSent, Name: "authkit_invitation_sent_total", Help: "Sent invitations."},
	{ID: authkit.MetricInvitationCompleted, Name: "authkit_invitation_completed_total", Help: "Completed invitations."},
	{ID: authkit.MetricRecoveryRequest, Name: "authkit_recovery_request_total", Help: "Password recovery requests."},
	{ID: authkit.MetricPasswordResetSuccess, Name: "authkit_password_reset_success_total", Help: "Passwords set from a reset link."},
	{ID: authkit.MetricPasswordResetFailure, Name: "authkit_password_reset_failure_total", Help: "Rejected password resets."},
	{ID: authkit.MetricPasswordChange, Name: "authkit_password_change_total", Help: "Self-service password changes."},
	{ID: authkit.MetricPasswordRehash, Name: "authkit_password_rehash_total", Help: "Password hashes upgraded at login."},
	{ID: authkit.MetricAdminAction, Name: "authkit_admin_action_total", Help: "Applied administrator actions."},
	{ID: authkit.MetricSettingsChange, Name: "authkit_settings_change_total", Help: "Settings mutations."},
	{ID: authkit.MetricMailFailure, Name: "authkit_mail_failure_total", Help: "Failed mail deliveries."},
	{ID: authkit.MetricRateLimitHit, Name: "authkit_rate_limit_hit_total", Help: "Requests refused by the throttle."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricLoginLatency, Name: "authkit_login_latency_seconds", Help: "Password login latency."},
}

// HistogramBounds are the upper bounds of the eight buckets.
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

// HistogramBoundSuffix is HistogramBounds in instrument-name form.
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

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
