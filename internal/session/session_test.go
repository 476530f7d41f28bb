package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	require.Len(t, a, 43)
	require.NotEqual(t, a, b)
}

func TestGateLogin(t *testing.T) {
	ctx := context.Background()
	g := NewGate(NewMemoryStore(time.Hour), "letmein")

	_, err := g.Login(ctx, "nope")
	require.ErrorIs(t, err, apperr.ErrAuth)

	_, err = g.Login(ctx, "")
	require.ErrorIs(t, err, apperr.ErrValidation)

	token, err := g.Login(ctx, "letmein")
	require.NoError(t, err)
	require.True(t, g.IsAuthenticated(ctx, token))
	require.False(t, g.IsAuthenticated(ctx, "forged"))
	require.False(t, g.IsAuthenticated(ctx, ""))

	require.NoError(t, g.Logout(ctx, token))
	require.False(t, g.IsAuthenticated(ctx, token))
}

func TestGateWithoutSecretDeniesEveryone(t *testing.T) {
	g := NewGate(NewMemoryStore(time.Hour), "")

	_, err := g.Login(context.Background(), "anything")
	require.ErrorIs(t, err, apperr.ErrAuth)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Unix(1000, 0)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.Create(ctx, "tok"))
	ok, err := s.Valid(ctx, "tok")
	require.NoError(t, err)
	require.True(t, ok)

	clock = clock.Add(2 * time.Minute)
	ok, err = s.Valid(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStore(rdb, time.Hour)
	require.NoError(t, s.Create(ctx, "tok"))
	require.True(t, mr.Exists("monozip:sess:tok"))
	require.Equal(t, time.Hour, mr.TTL("monozip:sess:tok"))

	ok, err := s.Valid(ctx, "tok")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Hour)
	ok, err = s.Valid(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Create(ctx, "tok2"))
	require.NoError(t, s.Delete(ctx, "tok2"))
	ok, err = s.Valid(ctx, "tok2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGateRedisDownIsUnauthenticated(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	g := NewGate(NewRedisStore(rdb, time.Hour), "pw")

	token, err := g.Login(context.Background(), "pw")
	require.NoError(t, err)

	mr.Close()
	require.False(t, g.IsAuthenticated(context.Background(), token))
}
