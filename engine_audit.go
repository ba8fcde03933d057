package authkit

import (
	"context"
	"strconv"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventCookieLoginSuccess   = "cookie_login_success"
	auditEventCookieLoginFailure   = "cookie_login_failure"
	auditEventLogout               = "logout"
	auditEventSessionStale         = "session_stale"
	auditEventRegistration         = "registration"
	auditEventActivation           = "activation"
	auditEventInvitationSent       = "invitation_sent"
	auditEventInvitationCompleted  = "invitation_completed"
	auditEventRecoveryRequest      = "password_recovery_request"
	auditEventPasswordReset        = "password_reset"
	auditEventPasswordChange       = "password_change"
	auditEventSuspensionChange     = "admin_suspension_change"
	auditEventSoftDelete           = "admin_soft_delete"
	auditEventRestore              = "admin_restore"
	auditEventHardDelete           = "admin_hard_delete"
	auditEventAccountTypeChange    = "admin_account_type_change"
	auditEventAdminCreate          = "admin_create_user"
	auditEventSettingsChange       = "settings_change"
	auditEventAccountChange        = "account_change"
	auditEventRateLimitTriggered   = "rate_limit_triggered"
	auditEventMailDeliveryFailure  = "mail_delivery_failure"
	auditEventPasswordHashUpgraded = "password_hash_upgraded"
)

// Reasons recorded in AuditEvent.Error.
const (
	auditReasonInvalidToken       = "invalid_token"
	auditReasonInvalidCredentials = "invalid_credentials"
	auditReasonRateLimited        = "rate_limited"
	auditReasonAccountDeleted     = "account_deleted"
	auditReasonAccountSuspended   = "account_suspended"
	auditReasonAccountInactive    = "account_inactive"
	auditReasonInvalidCookie      = "invalid_cookie"
	auditReasonInvalidLink        = "invalid_link"
	auditReasonLinkExpired        = "link_expired"
	auditReasonPersistence        = "persistence_failed"
	auditReasonMail               = "mail_failed"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	targetID int64,
	sessionID string,
	reason string,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    formatID(userID),
		TargetID:  formatID(targetID),
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     reason,
		Metadata:  metadata,
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, 0, 0, "", auditReasonRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func formatID(id int64) string {
	if id <= 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
