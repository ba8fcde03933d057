package authkit

import "errors"

// Sentinel errors. Workflow operations report user-facing failures through
// [Result]; these are returned as Go errors only for infrastructure faults
// or by the storage contracts.
var (
	// ErrUserNotFound is returned by UserStore lookups that match no row.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser is returned by UserStore.Insert on a name or email conflict.
	ErrDuplicateUser = errors.New("duplicate user")
	// ErrSettingNotFound is returned by SettingStore.Setting for unknown keys.
	ErrSettingNotFound = errors.New("setting not found")
	// ErrEngineNotReady is returned when a nil or unbuilt Engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrNoClient is returned when an operation is called without a Client.
	ErrNoClient = errors.New("client state required")
	// ErrSessionUnavailable wraps session store failures.
	ErrSessionUnavailable = errors.New("session store unavailable")
	// ErrUserStoreUnavailable wraps user store failures.
	ErrUserStoreUnavailable = errors.New("user store unavailable")
	// ErrMailUnavailable wraps mail delivery failures.
	ErrMailUnavailable = errors.New("mail delivery failed")
)
