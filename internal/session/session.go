// Package session is the login gate: one shared secret, server-side session
// flags keyed by a random cookie token.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/redis/go-redis/v9"
)

const (
	CookieName = "monozip_session"
	tokenBytes = 32
)

// Store persists authenticated session tokens.
type Store interface {
	Create(ctx context.Context, token string) error
	Valid(ctx context.Context, token string) (bool, error)
	Delete(ctx context.Context, token string) error
}

// NewToken returns 256 random bits, base64url encoded.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ---- Redis ----

type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisStore{rdb: rdb, prefix: "monozip:sess:", ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, token string) error {
	return s.rdb.Set(ctx, s.prefix+token, "1", s.ttl).Err()
}

func (s *RedisStore) Valid(ctx context.Context, token string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.prefix+token).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, s.prefix+token).Err()
}

// ---- in-process ----

// MemoryStore keeps sessions in process memory; used when Redis is not configured.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &MemoryStore{sessions: map[string]time.Time{}, ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for t, exp := range s.sessions {
		if now.After(exp) {
			delete(s.sessions, t)
		}
	}
	s.sessions[token] = now.Add(s.ttl)
	return nil
}

func (s *MemoryStore) Valid(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.sessions[token]
	if !ok {
		return false, nil
	}
	if s.now().After(exp) {
		delete(s.sessions, token)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// ---- gate ----

type Gate struct {
	store  Store
	secret string
}

func NewGate(store Store, loginSecret string) *Gate {
	return &Gate{store: store, secret: loginSecret}
}

// Login checks the shared secret and opens a session.
func (g *Gate) Login(ctx context.Context, presented string) (string, error) {
	if presented == "" {
		return "", apperr.Validation("enter the password")
	}
	if g.secret == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(g.secret)) != 1 {
		return "", apperr.Auth("password is incorrect")
	}

	token, err := NewToken()
	if err != nil {
		return "", err
	}
	if err := g.store.Create(ctx, token); err != nil {
		return "", apperr.Unavailable("session store unavailable", err)
	}
	return token, nil
}

// IsAuthenticated reports whether token belongs to an open session. Store
// errors count as not authenticated.
func (g *Gate) IsAuthenticated(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	ok, err := g.store.Valid(ctx, token)
	return err == nil && ok
}

func (g *Gate) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return g.store.Delete(ctx, token)
}
