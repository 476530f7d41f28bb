package db_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/monozip/internal/config"
	"github.com/jmehdipour/monozip/internal/db"
	"github.com/stretchr/testify/require"
)

func TestOpenMySQLIsLazy(t *testing.T) {
	dbx, err := db.OpenMySQL("monozip:pw@tcp(127.0.0.1:1)/monozip?parseTime=true", db.PoolOpts{MaxOpenConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbx.Close() })

	require.Equal(t, 2, dbx.Stats().MaxOpenConnections)
	require.Error(t, db.Ping(dbx, 200*time.Millisecond))
}

func TestEmptyDSN(t *testing.T) {
	_, err := db.OpenMySQL("", db.PoolOpts{})
	require.Error(t, err)
	_, err = db.NewMySQLConnection("", db.PoolOpts{})
	require.Error(t, err)
}

func TestPoolFromConfig(t *testing.T) {
	got := db.PoolFromConfig(config.DatabaseConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Second,
		PingTimeout:     3 * time.Second,
	})
	require.Equal(t, db.PoolOpts{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Second,
		PingTimeout:     3 * time.Second,
	}, got)
}

func TestRedisOptsFromConfig(t *testing.T) {
	got := db.RedisOptsFromConfig(config.RedisConfig{Addr: "cache:6379", Password: "pw", DB: 2, DialTimeout: time.Second})
	require.Equal(t, db.RedisOpts{Addr: "cache:6379", Password: "pw", DB: 2, DialTimeout: time.Second}, got)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := db.NewRedisClient(db.RedisOpts{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = db.NewRedisClient(db.RedisOpts{Addr: addr, DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
}
