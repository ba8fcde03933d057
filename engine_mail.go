package authkit

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrEthical07/authkit/mail"
	"go.uber.org/zap"
)

// linkTo appends escaped path segments to base.
func linkTo(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func (e *Engine) sendMail(ctx context.Context, to string, tmpl MailTemplate, link, name string) error {
	msg := mail.Message{
		To:       to,
		FromAddr: e.config.Mail.FromAddress,
		FromName: e.config.Mail.FromName,
		Subject:  tmpl.Subject,
		Body:     tmpl.render(link, name),
		HTML:     e.config.Mail.HTML,
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		e.metricInc(MetricMailFailure)
		e.logger.Warn("mail delivery failed",
			zap.String("to", to),
			zap.String("subject", tmpl.Subject),
			zap.Error(err),
		)
		e.emitAudit(ctx, auditEventMailDeliveryFailure, false, 0, 0, "", auditReasonMail, func() map[string]string {
			return map[string]string{"subject": tmpl.Subject}
		})
		return fmt.Errorf("%w: %w", ErrMailUnavailable, err)
	}
	return nil
}

// applyDefaults inserts the default settings template for a new account.
func (e *Engine) applyDefaults(ctx context.Context, uid int64) error {
	defaults, err := e.defaults.LoadDefaults(ctx, uid)
	if err != nil {
		return fmt.Errorf("load default settings: %w", err)
	}
	if len(defaults) == 0 {
		return nil
	}
	if err := e.settings.InsertSettings(ctx, uid, defaults); err != nil {
		return storeErr("insert settings", err)
	}
	return nil
}

// rollbackUser removes a half-created account.
func (e *Engine) rollbackUser(ctx context.Context, uid int64) {
	if _, err := e.users.Delete(ctx, uid); err != nil {
		e.logger.Warn("rollback of new user failed", zap.Int64("user_id", uid), zap.Error(err))
	}
}
