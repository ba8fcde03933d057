package authkit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSuspendUserKicksAndBlocksLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _ := env.loggedIn(t, "root", AccountAdmin)
	victim, victimID := env.loggedIn(t, "alice", AccountNormal)

	r, err := env.engine.UpdateSuspensionStatus(ctx, admin, formatID(victimID), 2, env.token(t, admin, ScopeAdmin))
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	expectCode(t, r, CodeOK)

	u := env.store.user(t, victimID)
	if u.SuspendedUntil == nil || !u.SuspendedUntil.Equal(env.clock.Now().Add(48*time.Hour)) {
		t.Fatalf("unexpected suspension %v", u.SuspendedUntil)
	}
	if valid, _ := env.engine.IsSessionValid(ctx, victim); valid {
		t.Fatal("expected the suspended user's session to be invalidated")
	}
	r = env.login(t, env.client(t), "alice", "password123", false)
	expectCode(t, r, CodeBadRequest)

	r, err = env.engine.UpdateSuspensionStatus(ctx, admin, formatID(victimID), 0, env.token(t, admin, ScopeAdmin))
	if err != nil {
		t.Fatalf("lift: %v", err)
	}
	expectCode(t, r, CodeOK)
	if env.store.user(t, victimID).SuspendedUntil != nil {
		t.Fatal("expected suspension to be lifted")
	}
	expectCode(t, env.login(t, env.client(t), "alice", "password123", false), CodeOK)
}

func TestAdminCannotTargetSelf(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, adminID := env.loggedIn(t, "root", AccountAdmin)

	r, err := env.engine.UpdateSuspensionStatus(ctx, admin, formatID(adminID), 3, env.token(t, admin, ScopeAdmin))
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	expectCode(t, r, CodeMethodNotAllowed)
	if r.Message != msgSelfTarget {
		t.Fatalf("unexpected message %q", r.Message)
	}
	u := env.store.user(t, adminID)
	if u.SuspendedUntil != nil || u.SessionID == nil {
		t.Fatal("self-targeted request must not mutate the row")
	}
}

func TestSuspendedAdminLosesPrivileges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root, rootID := env.loggedIn(t, "root", AccountAdmin)
	other, _ := env.loggedIn(t, "ops", AccountAdmin)
	victimID := env.addUser(t, "alice", "password123", AccountNormal)

	r, err := env.engine.UpdateSuspensionStatus(ctx, other, formatID(rootID), 5, env.token(t, other, ScopeAdmin))
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	expectCode(t, r, CodeOK)

	r, err = env.engine.HardDeleteUser(ctx, root, formatID(victimID), env.token(t, root, ScopeAdmin))
	if err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	expectCode(t, r, CodeUnauthorized)
	env.store.user(t, victimID)

	r, err = env.engine.UpdateSetting(ctx, root, formatID(victimID), "theme", "dark", env.token(t, root, ScopeSettings))
	if err != nil {
		t.Fatalf("update setting: %v", err)
	}
	expectCode(t, r, CodeUnauthorized)

	r, err = env.engine.ListUsers(ctx, root, 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	expectCode(t, r, CodeUnauthorized)

	r, err = env.engine.InviteUser(ctx, root, "guest@example.test", env.token(t, root, ScopeInvite))
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	expectCode(t, r, CodeUnauthorized)
}

func TestAdminGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _ := env.loggedIn(t, "root", AccountAdmin)
	user, userID := env.loggedIn(t, "alice", AccountNormal)
	anon := env.client(t)

	tests := []struct {
		name   string
		client *Client
		target string
		token  func() string
		code   int
	}{
		{"bad token", admin, formatID(userID), func() string { return "bogus" }, CodeMethodNotAllowed},
		{"wrong scope", admin, formatID(userID), func() string { return env.token(t, admin, ScopeSettings) }, CodeMethodNotAllowed},
		{"anonymous", anon, formatID(userID), func() string { return env.token(t, anon, ScopeAdmin) }, CodeUnauthorized},
		{"not admin", user, "1", func() string { return env.token(t, user, ScopeAdmin) }, CodeForbidden},
		{"bad id", admin, "abc", func() string { return env.token(t, admin, ScopeAdmin) }, CodeMethodNotAllowed},
		{"unknown target", admin, "999", func() string { return env.token(t, admin, ScopeAdmin) }, CodeBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := env.engine.SoftDeleteUser(ctx, tc.client, tc.target, tc.token())
			if err != nil {
				t.Fatalf("soft delete: %v", err)
			}
			expectCode(t, r, tc.code)
		})
	}
	if env.store.user(t, userID).Deleted {
		t.Fatal("guarded requests must not delete")
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _ := env.loggedIn(t, "root", AccountAdmin)
	id := env.addUser(t, "alice", "password123", AccountNormal)

	r, err := env.engine.SoftDeleteUser(ctx, admin, formatID(id), env.token(t, admin, ScopeAdmin))
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	expectCode(t, r, CodeOK)
	u := env.store.user(t, id)
	if !u.Deleted || u.DeletedAt == nil {
		t.Fatalf("expected deleted flag and timestamp, got %+v", u)
	}
	r = env.login(t, env.client(t), "alice", "password123", false)
	if r.Message != msgAccountDeleted {
		t.Fatalf("unexpected message %q", r.Message)
	}

	r, err = env.engine.RestoreUser(ctx, admin, formatID(id), env.token(t, admin, ScopeAdmin))
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	expectCode(t, r, CodeOK)
	u = env.store.user(t, id)
	if u.Deleted || u.DeletedAt != nil {
		t.Fatalf("expected restored row, got %+v", u)
	}
	expectCode(t, env.login(t, env.client(t), "alice", "password123", false), CodeOK)
}

func TestHardDeleteRemovesRowAndSettings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _ := env.loggedIn(t, "root", AccountAdmin)
	id := env.addUser(t, "alice", "password123", AccountNormal)
	_ = env.store.PutSetting(ctx, id, "theme", "dark")

	r, err := env.engine.HardDeleteUser(ctx, admin, formatID(id), env.token(t, admin, ScopeAdmin))
	if err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	expectCode(t, r, CodeOK)
	if _, err := env.store.FindByID(ctx, id); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected row removed, got %v", err)
	}
	if s, _ := env.store.Settings(ctx, id); len(s) != 0 {
		t.Fatal("expected settings removed")
	}

	r, err = env.engine.HardDeleteUser(ctx, admin, formatID(id), env.token(t, admin, ScopeAdmin))
	if err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	expectCode(t, r, CodeBadRequest)
}

func TestChangeAccountType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _ := env.loggedIn(t, "root", AccountAdmin)
	id := env.addUser(t, "alice", "password123", AccountNormal)

	r, err := env.engine.ChangeAccountType(ctx, admin, formatID(id), AccountType(9), env.token(t, admin, ScopeAdmin))
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	expectCode(t, r, CodeBadRequest)

	r, err = env.engine.ChangeAccountType(ctx, admin, formatID(id), AccountAdmin, env.token(t, admin, ScopeAdmin))
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	expectCode(t, r, CodeOK)
	if env.store.user(t, id).AccountType != AccountAdmin {
		t.Fatal("expected admin account type")
	}

	c := env.client(t)
	expectCode(t, env.login(t, c, "alice", "password123", false), CodeOK)
	if !c.IsAdmin() {
		t.Fatal("expected the new account type in the session")
	}
}

func TestCreateAndListUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _ := env.loggedIn(t, "root", AccountAdmin)

	r, err := env.engine.CreateUser(ctx, admin, AdminCreateInput{
		Name:        "erin",
		Email:       "erin@example.test",
		Password:    "password123",
		AccountType: AccountNormal,
	}, env.token(t, admin, ScopeAdmin))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	expectCode(t, r, CodeOK)
	id := r.Data["user_id"].(int64)
	if !env.store.user(t, id).Activated() {
		t.Fatal("admin-created users are active")
	}
	if s, _ := env.store.Settings(ctx, id); len(s) != 3 {
		t.Fatalf("expected defaults, got %v", s)
	}
	expectCode(t, env.login(t, env.client(t), "erin", "password123", false), CodeOK)

	r, err = env.engine.CreateUser(ctx, admin, AdminCreateInput{
		Name:        "erin",
		Email:       "other@example.test",
		Password:    "password123",
		AccountType: AccountNormal,
	}, env.token(t, admin, ScopeAdmin))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	expectCode(t, r, CodeConflict)

	r, err = env.engine.ListUsers(ctx, admin, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	expectCode(t, r, CodeOK)
	profiles := r.Data["users"].([]Profile)
	if len(profiles) != 2 || profiles[0].Name != "root" || profiles[1].Name != "erin" {
		t.Fatalf("unexpected profiles %+v", profiles)
	}

	r, err = env.engine.ListUsers(ctx, admin, 1, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if profiles := r.Data["users"].([]Profile); len(profiles) != 1 || profiles[0].Name != "erin" {
		t.Fatalf("unexpected page %+v", profiles)
	}

	user, _ := env.loggedIn(t, "alice", AccountNormal)
	r, err = env.engine.ListUsers(ctx, user, 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	expectCode(t, r, CodeForbidden)

	if env.engine.MetricsSnapshot().Counters[MetricAdminAction] != 1 {
		t.Fatal("expected one admin action")
	}
}
