package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/MrEthical07/authkit/internal"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned by Load for unknown, expired or malformed ids.
	ErrNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrCorrupt is returned when a stored blob cannot be decoded.
	ErrCorrupt = errors.New("session corrupt")
	// ErrDestroyed is returned when saving a destroyed session.
	ErrDestroyed = errors.New("session destroyed")
)

const minTTL = time.Second

type record struct {
	Values    map[string]string   `json:"v,omitempty"`
	Lists     map[string][]string `json:"l,omitempty"`
	CreatedAt int64               `json:"c"`
}

// Store persists sessions in Redis.
type Store struct {
	redis       redis.UniversalClient
	prefix      string
	ttl         time.Duration
	jitterRange time.Duration
	now         func() time.Time
}

// NewStore returns a Store writing keys "<prefix>:<id>" that expire ttl
// after the last save, plus up to jitterRange of random slack.
func NewStore(redisClient redis.UniversalClient, prefix string, ttl, jitterRange time.Duration) *Store {
	if ttl < minTTL {
		ttl = minTTL
	}
	if jitterRange < 0 {
		jitterRange = 0
	}
	return &Store{
		redis:       redisClient,
		prefix:      prefix,
		ttl:         ttl,
		jitterRange: jitterRange,
		now:         time.Now,
	}
}

// New returns an empty session with a fresh id. Nothing is written until Save.
func (s *Store) New() (*Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	return newSession(sid.String(), s.now().Unix()), nil
}

// Load fetches the session with the given id.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	if _, err := internal.ParseSessionID(id); err != nil {
		return nil, ErrNotFound
	}

	raw, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	sess := newSession(id, rec.CreatedAt)
	if rec.Values != nil {
		sess.values = rec.Values
	}
	if rec.Lists != nil {
		sess.lists = rec.Lists
	}
	sess.dirty = false
	return sess, nil
}

// LoadOrNew loads id, or starts a fresh session when id is unknown.
func (s *Store) LoadOrNew(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		sess, err := s.Load(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrCorrupt) {
			return nil, err
		}
	}
	return s.New()
}

// Save writes the session and refreshes its TTL.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess.destroyed {
		return ErrDestroyed
	}

	raw, err := json.Marshal(record{
		Values:    sess.values,
		Lists:     sess.lists,
		CreatedAt: sess.createdAt,
	})
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sess.id), raw, s.expiry()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	sess.dirty = false
	return nil
}

// Regenerate moves the session to a new id and deletes the old key. Values
// are kept; the caller persists them with Save.
func (s *Store) Regenerate(ctx context.Context, sess *Session) error {
	sid, err := internal.NewSessionID()
	if err != nil {
		return err
	}

	old := sess.id
	sess.id = sid.String()
	sess.dirty = true
	sess.destroyed = false

	if err := s.redis.Del(ctx, s.key(old)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Destroy deletes the stored session and clears the handle. Destroying an
// unknown session is not an error.
func (s *Store) Destroy(ctx context.Context, sess *Session) error {
	sess.values = map[string]string{}
	sess.lists = map[string][]string{}
	sess.destroyed = true
	sess.dirty = false

	if err := s.redis.Del(ctx, s.key(sess.id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) key(id string) string {
	return s.prefix + ":" + id
}

func (s *Store) expiry() time.Duration {
	if s.jitterRange <= 0 {
		return s.ttl
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(s.jitterRange)))
	if err != nil {
		return s.ttl
	}
	return s.ttl + time.Duration(n.Int64())
}
