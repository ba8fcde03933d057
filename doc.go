// Package authkit is the authentication module of an MVC web toolkit:
// login with a session state machine and remember-me cookie, self-service
// registration, admin invitations, password recovery, admin account
// operations and per-user settings.
//
// An [Engine] is assembled once through [Builder] and is safe for
// concurrent use. Each request works on its own [Client], obtained from
// [Engine.StartSession] and persisted with [Engine.Commit].
//
// # Results and errors
//
// Workflows return a [Result] envelope describing the business outcome
// (code, message, accumulated errors, data). The Go error is reserved for
// infrastructure failures (store, redis, hashing) and wraps one of the
// sentinels in errors.go.
//
// # Architecture boundaries
//
// authkit is the public surface. Persistence is injected through
// [UserStore] and [SettingStore] (see store/sqlstore), mail through
// [Mailer], captchas through [CaptchaValidator]. Sessions, anti-forgery
// tokens and throttle counters live in Redis.
//
// # What this package must NOT do
//
//   - Expose Redis clients or encoding details in its public API.
//   - Import any sub-package that re-imports authkit.
//   - Render HTML; presentation belongs to the caller (see middleware and
//     internal/httpapi).
package authkit
