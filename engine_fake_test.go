package authkit

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authkit/captcha"
	"github.com/MrEthical07/authkit/mail"
	"github.com/MrEthical07/authkit/settings"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeStore is an in-memory UserStore and SettingStore.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int64]*User
	settings map[int64]map[string]string
	nextID   int64

	failErr         error
	failRecordLogin error

	insertCalls        int
	recordFailedCalls  int
	clearSessionCalls  int
	updatePasswordCall int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[int64]*User{},
		settings: map[int64]map[string]string{},
	}
}

func (s *fakeStore) copyUser(u *User) *User {
	cp := *u
	return &cp
}

func (s *fakeStore) find(match func(*User) bool) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	for _, u := range s.users {
		if match(u) {
			return s.copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

// mutate applies fn to the row with id and reports 1 when fn accepted it.
func (s *fakeStore) mutate(id int64, fn func(*User) bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	u, ok := s.users[id]
	if !ok || !fn(u) {
		return 0, nil
	}
	return 1, nil
}

func strp(s string) *string { return &s }

func timep(t time.Time) *time.Time { return &t }

func (s *fakeStore) FindByID(_ context.Context, id int64) (*User, error) {
	return s.find(func(u *User) bool { return u.ID == id })
}

func (s *fakeStore) FindByName(_ context.Context, name string) (*User, error) {
	return s.find(func(u *User) bool { return u.Name == name })
}

func (s *fakeStore) FindByEmail(_ context.Context, email string) (*User, error) {
	return s.find(func(u *User) bool { return u.Email == email })
}

func (s *fakeStore) FindByNameOrEmail(_ context.Context, identifier string) (*User, error) {
	return s.find(func(u *User) bool { return u.Name == identifier || u.Email == identifier })
}

func (s *fakeStore) FindByRememberToken(_ context.Context, id int64, token string) (*User, error) {
	return s.find(func(u *User) bool {
		return u.ID == id && u.RememberToken != nil && *u.RememberToken == token
	})
}

func (s *fakeStore) FindByResetHash(_ context.Context, name, hash string) (*User, error) {
	return s.find(func(u *User) bool {
		return u.Name == name && u.ResetHash != nil && *u.ResetHash == hash
	})
}

func (s *fakeStore) CountInvitation(_ context.Context, id int64, hash string) (int, error) {
	_, err := s.find(func(u *User) bool {
		return u.ID == id && u.PasswordHash == nil && u.ActivationHash != nil && *u.ActivationHash == hash
	})
	if errors.Is(err, ErrUserNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *fakeStore) NameExists(ctx context.Context, name string) (bool, error) {
	_, err := s.FindByName(ctx, name)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *fakeStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *fakeStore) ListUsers(_ context.Context, offset, limit int) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := []User{}
	for i, id := range ids {
		if i < offset || len(out) >= limit {
			continue
		}
		out = append(out, *s.users[id])
	}
	return out, nil
}

func (s *fakeStore) Insert(_ context.Context, nu NewUser) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.failErr != nil {
		return 0, s.failErr
	}
	for _, u := range s.users {
		if u.Name == nu.Name || u.Email == nu.Email {
			return 0, ErrDuplicateUser
		}
	}
	s.nextID++
	s.users[s.nextID] = &User{
		ID:             s.nextID,
		Name:           nu.Name,
		NiceName:       nu.NiceName,
		Email:          nu.Email,
		PasswordHash:   nu.PasswordHash,
		ActivationHash: nu.ActivationHash,
		Status:         nu.Status,
		AccountType:    nu.AccountType,
		CreatedAt:      nu.CreatedAt,
	}
	return s.nextID, nil
}

func (s *fakeStore) Delete(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return 0, nil
	}
	delete(s.users, id)
	delete(s.settings, id)
	return 1, nil
}

func (s *fakeStore) ActivateRegistered(_ context.Context, id int64, hash string) (int64, error) {
	return s.mutate(id, func(u *User) bool {
		if u.PasswordHash == nil || u.ActivationHash == nil || *u.ActivationHash != hash {
			return false
		}
		u.Status = StatusActivated
		u.ActivationHash = nil
		return true
	})
}

func (s *fakeStore) CompleteInvitation(_ context.Context, id int64, hash, name, passwordHash string) (int64, error) {
	return s.mutate(id, func(u *User) bool {
		if u.PasswordHash != nil || u.ActivationHash == nil || *u.ActivationHash != hash {
			return false
		}
		u.Name = name
		u.NiceName = name
		u.PasswordHash = strp(passwordHash)
		u.Status = StatusActivated
		u.ActivationHash = nil
		return true
	})
}

func (s *fakeStore) RecordFailedLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	s.recordFailedCalls++
	s.mu.Unlock()
	_, err := s.mutate(id, func(u *User) bool {
		u.FailedLogins++
		u.LastFailedLogin = timep(at)
		return true
	})
	return err
}

func (s *fakeStore) RecordLogin(_ context.Context, id int64, sessionID string, rememberToken *string, at time.Time) error {
	if s.failRecordLogin != nil {
		return s.failRecordLogin
	}
	_, err := s.mutate(id, func(u *User) bool {
		u.FailedLogins = 0
		u.LastFailedLogin = nil
		u.LastLoginAt = timep(at)
		u.SessionID = strp(sessionID)
		if rememberToken != nil {
			u.RememberToken = strp(*rememberToken)
		}
		return true
	})
	return err
}

func (s *fakeStore) SessionID(_ context.Context, id int64) (*string, error) {
	u, err := s.find(func(u *User) bool { return u.ID == id })
	if err != nil {
		return nil, err
	}
	return u.SessionID, nil
}

func (s *fakeStore) ClearSession(_ context.Context, id int64, sessionID string) (int64, error) {
	s.mu.Lock()
	s.clearSessionCalls++
	s.mu.Unlock()
	return s.mutate(id, func(u *User) bool {
		if u.SessionID == nil || *u.SessionID != sessionID {
			return false
		}
		u.SessionID = nil
		u.RememberToken = nil
		return true
	})
}

func (s *fakeStore) SetSessionID(_ context.Context, id int64, sessionID *string) error {
	_, err := s.mutate(id, func(u *User) bool {
		u.SessionID = sessionID
		return true
	})
	return err
}

func (s *fakeStore) SetResetHash(_ context.Context, id int64, hash string, expiresAt time.Time) error {
	_, err := s.mutate(id, func(u *User) bool {
		u.ResetHash = strp(hash)
		u.ResetExpiresAt = timep(expiresAt)
		return true
	})
	return err
}

func (s *fakeStore) ResetPassword(_ context.Context, name, hash, passwordHash string, now time.Time) (int64, error) {
	u, err := s.FindByName(context.Background(), name)
	if errors.Is(err, ErrUserNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.mutate(u.ID, func(u *User) bool {
		if u.ResetHash == nil || *u.ResetHash != hash || u.ResetExpiresAt == nil || !u.ResetExpiresAt.After(now) {
			return false
		}
		u.PasswordHash = strp(passwordHash)
		u.ResetHash = nil
		u.ResetExpiresAt = nil
		u.FailedLogins = 0
		u.LastFailedLogin = nil
		return true
	})
}

func (s *fakeStore) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	s.updatePasswordCall++
	s.mu.Unlock()
	_, err := s.mutate(id, func(u *User) bool {
		u.PasswordHash = strp(passwordHash)
		return true
	})
	return err
}

func (s *fakeStore) SetSuspension(_ context.Context, id int64, until *time.Time) (int64, error) {
	return s.mutate(id, func(u *User) bool {
		u.SuspendedUntil = until
		return true
	})
}

func (s *fakeStore) SetDeleted(_ context.Context, id int64, deleted bool, at *time.Time) (int64, error) {
	return s.mutate(id, func(u *User) bool {
		u.Deleted = deleted
		u.DeletedAt = at
		return true
	})
}

func (s *fakeStore) SetAccountType(_ context.Context, id int64, t AccountType) (int64, error) {
	return s.mutate(id, func(u *User) bool {
		u.AccountType = t
		return true
	})
}

func (s *fakeStore) UpdateName(_ context.Context, id int64, name string) (int64, error) {
	return s.mutate(id, func(u *User) bool {
		u.Name = name
		u.NiceName = name
		return true
	})
}

func (s *fakeStore) UpdateEmail(_ context.Context, id int64, email string) (int64, error) {
	return s.mutate(id, func(u *User) bool {
		u.Email = email
		return true
	})
}

func (s *fakeStore) SetAvatar(_ context.Context, id int64, has bool, avatarID string) (int64, error) {
	return s.mutate(id, func(u *User) bool {
		u.HasAvatar = has
		u.AvatarID = avatarID
		return true
	})
}

func (s *fakeStore) Settings(_ context.Context, userID int64) ([]Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Setting{}
	for k, v := range s.settings[userID] {
		out = append(out, Setting{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *fakeStore) Setting(_ context.Context, userID int64, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[userID][key]
	if !ok {
		return "", ErrSettingNotFound
	}
	return v, nil
}

func (s *fakeStore) PutSetting(_ context.Context, userID int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings[userID] == nil {
		s.settings[userID] = map[string]string{}
	}
	s.settings[userID][key] = value
	return nil
}

func (s *fakeStore) DeleteSetting(_ context.Context, userID int64, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settings[userID][key]; !ok {
		return 0, nil
	}
	delete(s.settings[userID], key)
	return 1, nil
}

func (s *fakeStore) DeleteSettings(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, userID)
	return nil
}

func (s *fakeStore) InsertSettings(_ context.Context, userID int64, rows []Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings[userID] == nil {
		s.settings[userID] = map[string]string{}
	}
	for _, row := range rows {
		if _, dup := s.settings[userID][row.Key]; dup {
			return errors.New("duplicate setting key")
		}
		s.settings[userID][row.Key] = row.Value
	}
	return nil
}

func (s *fakeStore) user(t *testing.T, id int64) User {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		t.Fatalf("user %d not found", id)
	}
	return *u
}

/*
====================================
TEST HARNESS
====================================
*/

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine  *Engine
	store   *fakeStore
	mailer  *mail.Recorder
	captcha *captcha.SessionValidator
	clock   *testClock
	mr      *miniredis.Miniredis
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Crypto.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Crypto.Salt = []byte("authkit-test-salt")
	cfg.Token.Secret = []byte("abcdefghijklmnopqrstuvwxyz012345")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Registration.VerificationURL = "https://example.test/activate"
	cfg.Invitation.Enabled = true
	cfg.Invitation.CompletionURL = "https://example.test/invitation"
	cfg.Recovery.ResetURL = "https://example.test/reset"
	cfg.Mail.FromAddress = "noreply@example.test"
	cfg.Mail.FromName = "Example"
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cv, err := captcha.NewSessionValidator(6, 10*time.Minute)
	if err != nil {
		t.Fatalf("captcha: %v", err)
	}
	cv.WithClock(clock.Now)

	store := newFakeStore()
	recorder := &mail.Recorder{}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithSettingStore(store).
		WithMailer(recorder).
		WithCaptcha(cv).
		WithDefaults(settings.NewTemplate(map[string]string{
			"theme":    "light",
			"language": "en",
			"pagesize": "20",
		})).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		engine:  engine,
		store:   store,
		mailer:  recorder,
		captcha: cv,
		clock:   clock,
		mr:      mr,
	}
}

// client starts a fresh anonymous client with its own cookie jar.
func (env *testEnv) client(t *testing.T) *Client {
	t.Helper()
	c, err := env.engine.StartSession(context.Background(), NewMemoryCookieJar())
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return c
}

func (env *testEnv) token(t *testing.T, c *Client, scope string) string {
	t.Helper()
	tok, err := env.engine.IssueToken(c, scope)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (env *testEnv) captchaAnswer(t *testing.T, c *Client, scope string) string {
	t.Helper()
	code, err := env.captcha.Issue(c.Session, scope)
	if err != nil {
		t.Fatalf("issue captcha: %v", err)
	}
	return code
}

// addUser inserts an activated user with password.
func (env *testEnv) addUser(t *testing.T, name, pass string, accountType AccountType) int64 {
	t.Helper()
	hash, err := env.engine.hasher.Hash(pass)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	id, err := env.store.Insert(context.Background(), NewUser{
		Name:         name,
		NiceName:     name,
		Email:        name + "@example.test",
		PasswordHash: &hash,
		Status:       StatusActivated,
		AccountType:  accountType,
		CreatedAt:    env.clock.Now(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func (env *testEnv) login(t *testing.T, c *Client, name, pass string, remember bool) *Result {
	t.Helper()
	r, err := env.engine.Login(context.Background(), c, LoginInput{
		Identifier: name,
		Password:   pass,
		RememberMe: remember,
		Token:      env.token(t, c, ScopeLogin),
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return r
}

func (env *testEnv) loggedIn(t *testing.T, name string, accountType AccountType) (*Client, int64) {
	t.Helper()
	id := env.addUser(t, name, "password123", accountType)
	c := env.client(t)
	if r := env.login(t, c, name, "password123", false); !r.Success {
		t.Fatalf("login %s: %+v", name, r)
	}
	return c, id
}

func expectCode(t *testing.T, r *Result, code int) {
	t.Helper()
	if r == nil {
		t.Fatalf("expected result with code %d, got nil", code)
	}
	if r.Code != code {
		t.Fatalf("expected code %d, got %d (%q, errors %+v)", code, r.Code, r.Message, r.Errors)
	}
}

func cookieFor(name, value string) *http.Cookie {
	return &http.Cookie{Name: name, Value: value, Path: "/"}
}
