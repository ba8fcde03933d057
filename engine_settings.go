package authkit

import (
	"context"
	"errors"
)

// settingsTarget checks that the caller may act on the settings of rawID:
// its session must be live and it must be that user or an administrator.
func (e *Engine) settingsTarget(ctx context.Context, r *Result, c *Client, rawID string) (int64, bool, error) {
	if ok, err := e.validateLiveSession(ctx, r, c); err != nil || !ok {
		return 0, false, err
	}
	target, ok := validateUserID(r, rawID)
	if !ok {
		return 0, false, nil
	}
	self, _ := c.UserID()
	if !r.Check(target == self || c.IsAdmin(), CodeForbidden, msgForbidden) {
		return 0, false, nil
	}
	return target, true, nil
}

// Settings returns every setting of a user.
func (e *Engine) Settings(ctx context.Context, c *Client, userID string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	target, ok, err := e.settingsTarget(ctx, r, c, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return r, nil
	}
	rows, err := e.settings.Settings(ctx, target)
	if err != nil {
		return nil, storeErr("settings", err)
	}
	values := make(map[string]string, len(rows))
	for _, s := range rows {
		values[s.Key] = s.Value
	}
	r.Set("settings", values)
	return r, nil
}

// Setting returns one setting of a user.
func (e *Engine) Setting(ctx context.Context, c *Client, userID, key string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	target, ok, err := e.settingsTarget(ctx, r, c, userID)
	if err != nil {
		return nil, err
	}
	if !ok || !r.Check(key != "", CodeBadRequest, msgSettingKeyEmpty) {
		return r, nil
	}
	value, err := e.settings.Setting(ctx, target, key)
	if errors.Is(err, ErrSettingNotFound) {
		r.Fail(CodeBadRequest, msgSettingUnknown)
		return r, nil
	}
	if err != nil {
		return nil, storeErr("setting", err)
	}
	r.Set("key", key).Set("value", value)
	return r, nil
}

// UpdateSetting inserts or replaces one setting.
func (e *Engine) UpdateSetting(ctx context.Context, c *Client, userID, key, value, token string) (*Result, error) {
	return e.mutateSettings(ctx, c, userID, token, func(r *Result, target int64) error {
		if !r.Check(key != "", CodeBadRequest, msgSettingKeyEmpty) {
			return nil
		}
		if err := e.settings.PutSetting(ctx, target, key, value); err != nil {
			return storeErr("put setting", err)
		}
		r.Succeed("the setting has been saved")
		return nil
	})
}

// DeleteSetting removes one setting.
func (e *Engine) DeleteSetting(ctx context.Context, c *Client, userID, key, token string) (*Result, error) {
	return e.mutateSettings(ctx, c, userID, token, func(r *Result, target int64) error {
		if !r.Check(key != "", CodeBadRequest, msgSettingKeyEmpty) {
			return nil
		}
		n, err := e.settings.DeleteSetting(ctx, target, key)
		if err != nil {
			return storeErr("delete setting", err)
		}
		if r.Check(n == 1, CodeBadRequest, msgSettingUnknown) {
			r.Succeed("the setting has been removed")
		}
		return nil
	})
}

// ResetUserSettings replaces every setting of a user with the defaults.
func (e *Engine) ResetUserSettings(ctx context.Context, c *Client, userID, token string) (*Result, error) {
	return e.mutateSettings(ctx, c, userID, token, func(r *Result, target int64) error {
		if err := e.settings.DeleteSettings(ctx, target); err != nil {
			return storeErr("delete settings", err)
		}
		if err := e.applyDefaults(ctx, target); err != nil {
			return err
		}
		r.Succeed("the settings have been reset")
		return nil
	})
}

func (e *Engine) mutateSettings(ctx context.Context, c *Client, userID, token string, apply func(*Result, int64) error) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	if ok, err := e.validateToken(ctx, r, c, ScopeSettings, token); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}
	target, ok, err := e.settingsTarget(ctx, r, c, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.finish(c, r), nil
	}
	if err := apply(r, target); err != nil {
		return nil, err
	}
	if r.Failed() {
		return e.finish(c, r), nil
	}

	actor, _ := c.UserID()
	e.metricInc(MetricSettingsChange)
	e.emitAudit(ctx, auditEventSettingsChange, true, actor, target, c.sessionID(), "", nil)
	if target == actor {
		if err := e.refreshSession(ctx, c, actor); err != nil {
			return nil, err
		}
	}
	return e.finish(c, r), nil
}
