// Package store is the client store adapter: reads degrade to built-in
// defaults when MySQL is unreachable, writes fail with an unavailable error.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/jmehdipour/monozip/internal/logger"
	"github.com/jmehdipour/monozip/internal/metrics"
	"github.com/jmehdipour/monozip/internal/model"
	"github.com/jmehdipour/monozip/internal/repository"
	"github.com/jmehdipour/monozip/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const DefaultEventsTopic = "monozip.client-events"

// Defaults returns the two pre-seeded clients.
func Defaults() []model.ClientRecord {
	return []model.ClientRecord{
		{Key: "am", Name: "AMさま", Prefix: "AMS_KTC", SuffixRule: model.DefaultSuffixRule, Version: 1},
		{Key: "af", Name: "AFさま", Prefix: "KTC_SSP", SuffixRule: model.DefaultSuffixRule, Version: 1},
	}
}

// Snapshot is the client list as seen by one read.
type Snapshot struct {
	Clients  []model.ClientRecord
	Fallback bool // true when Clients are the built-in defaults
}

// Find returns the client with the given key.
func (s Snapshot) Find(key string) (model.ClientRecord, bool) {
	for _, c := range s.Clients {
		if c.Key == key {
			return c, true
		}
	}
	return model.ClientRecord{}, false
}

type Options struct {
	EventsTopic      string
	BreakerThreshold int
	BreakerOpenFor   time.Duration
	Logger           *zap.Logger
}

type Store struct {
	db      *sqlx.DB
	clients repository.ClientsRepository
	outbox  repository.OutboxRepository
	breaker *Breaker
	topic   string
	log     *zap.Logger
	seeded  atomic.Bool

	now func() time.Time
}

// New builds a Store. db may be nil when the database could not be opened;
// the store then serves defaults and rejects writes.
func New(db *sqlx.DB, opts Options) *Store {
	if opts.EventsTopic == "" {
		opts.EventsTopic = DefaultEventsTopic
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("store")
	}

	s := &Store{
		db:      db,
		breaker: NewBreaker(opts.BreakerThreshold, opts.BreakerOpenFor),
		topic:   opts.EventsTopic,
		log:     opts.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if db != nil {
		s.clients = repository.NewClientsRepository(db)
		s.outbox = repository.NewOutboxRepository(db)
	}
	return s
}

func (s *Store) fallback(reason error) Snapshot {
	metrics.StoreFallbacks.Inc()
	s.log.Warn("client store unreachable, serving defaults", zap.Error(reason))
	return Snapshot{Clients: Defaults(), Fallback: true}
}

// ListClients never fails: on any read error it returns the defaults with
// Fallback set. The first successful read seeds an empty table.
func (s *Store) ListClients(ctx context.Context) Snapshot {
	if s.db == nil {
		return s.fallback(fmt.Errorf("no database connection"))
	}
	if !s.breaker.TryAcquire() {
		return s.fallback(fmt.Errorf("circuit open"))
	}

	rows, err := s.clients.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// the caller went away; says nothing about the database
			s.breaker.Release()
			return Snapshot{Clients: Defaults(), Fallback: true}
		}
		s.breaker.OnFailure()
		return s.fallback(err)
	}
	s.breaker.OnSuccess()

	if s.seeded.CompareAndSwap(false, true) && len(rows) == 0 {
		n, err := s.Seed(ctx)
		if err != nil {
			s.seeded.Store(false)
			s.log.Warn("seeding default clients failed", zap.Error(err))
		} else if n > 0 {
			if again, err := s.clients.List(ctx); err == nil {
				rows = again
			}
		}
	}

	if rows == nil {
		rows = []model.ClientRecord{}
	}
	return Snapshot{Clients: rows}
}

// Seed inserts the defaults when the table is empty. Rows whose key or name
// already exists are skipped. Returns the number of inserted rows.
func (s *Store) Seed(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, apperr.Unavailable("client store unavailable", fmt.Errorf("no database connection"))
	}

	count, err := s.clients.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	inserted := 0
	for _, c := range Defaults() {
		c.CreatedAt, c.UpdatedAt = now, now
		ok, err := s.clients.InsertIgnore(ctx, tx, c)
		if err != nil {
			return 0, fmt.Errorf("insert default %q: %w", c.Key, err)
		}
		if ok {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit defaults: %w", err)
	}
	if inserted > 0 {
		s.log.Info("seeded default clients", zap.Int("count", inserted))
	}
	return inserted, nil
}

// Insert stores a new client and returns it with id and timestamps assigned.
func (s *Store) Insert(ctx context.Context, c model.ClientRecord) (model.ClientRecord, error) {
	err := s.write(ctx, func(tx *sqlx.Tx) error {
		now := s.now()
		c.CreatedAt, c.UpdatedAt, c.Version = now, now, 1

		id, err := s.clients.Insert(ctx, tx, c)
		if err != nil {
			return err
		}
		c.ID = id
		return s.emit(ctx, tx, model.ClientCreated, c, now)
	})
	if err != nil {
		return model.ClientRecord{}, err
	}
	return c, nil
}

// Mutate updates name, prefix and suffix rule of the client identified by
// c.Key. When expectedVersion > 0 it must match the stored version.
func (s *Store) Mutate(ctx context.Context, c model.ClientRecord, expectedVersion int64) (model.ClientRecord, error) {
	var out model.ClientRecord
	err := s.write(ctx, func(tx *sqlx.Tx) error {
		cur, err := s.locked(ctx, tx, c.Key, expectedVersion)
		if err != nil {
			return err
		}

		now := s.now()
		out = *cur
		out.Name, out.Prefix, out.SuffixRule = c.Name, c.Prefix, c.SuffixRule
		out.UpdatedAt = now
		out.Version = cur.Version + 1

		if err := s.clients.Update(ctx, tx, out); err != nil {
			return err
		}
		return s.emit(ctx, tx, model.ClientUpdated, out, now)
	})
	if err != nil {
		return model.ClientRecord{}, err
	}
	return out, nil
}

// Remove hard-deletes the client and returns the removed record.
func (s *Store) Remove(ctx context.Context, key string, expectedVersion int64) (model.ClientRecord, error) {
	var out model.ClientRecord
	err := s.write(ctx, func(tx *sqlx.Tx) error {
		cur, err := s.locked(ctx, tx, key, expectedVersion)
		if err != nil {
			return err
		}
		out = *cur

		if err := s.clients.Delete(ctx, tx, key); err != nil {
			return err
		}
		return s.emit(ctx, tx, model.ClientDeleted, out, s.now())
	})
	if err != nil {
		return model.ClientRecord{}, err
	}
	return out, nil
}

func (s *Store) locked(ctx context.Context, tx *sqlx.Tx, key string, expectedVersion int64) (*model.ClientRecord, error) {
	cur, err := s.clients.GetByKeyForUpdate(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, apperr.NotFound(fmt.Sprintf("client %q does not exist", key))
	}
	if expectedVersion > 0 && cur.Version != expectedVersion {
		return nil, apperr.Conflict(fmt.Sprintf("client %q was changed by someone else (version %d, expected %d)", key, cur.Version, expectedVersion))
	}
	return cur, nil
}

func (s *Store) emit(ctx context.Context, tx *sqlx.Tx, typ model.ClientEventType, c model.ClientRecord, at time.Time) error {
	ev := model.ClientEvent{
		ID:         util.NewIDAt(at),
		Type:       typ,
		ClientKey:  c.Key,
		ClientName: c.Name,
		Prefix:     c.Prefix,
		OccurredAt: at,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.outbox.Insert(ctx, tx, model.OutboxEvent{
		Aggregate:   "client",
		AggregateID: c.Key,
		Topic:       s.topic,
		Payload:     payload,
		CreatedAt:   at,
	})
}

// write runs fn in a transaction and maps failures onto the error taxonomy:
// taxonomy errors pass through, duplicate keys become conflicts, a cancelled
// ctx is returned as is, anything else means the store is unavailable.
func (s *Store) write(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if s.db == nil {
		return apperr.Unavailable("client store unavailable", fmt.Errorf("no database connection"))
	}
	if !s.breaker.TryAcquire() {
		return apperr.Unavailable("client store unavailable", fmt.Errorf("circuit open"))
	}

	err := func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	}()

	switch {
	case err == nil:
		s.breaker.OnSuccess()
		return nil
	case apperr.KindOf(err) != "":
		s.breaker.OnSuccess()
		return err
	case repository.IsDuplicate(err):
		s.breaker.OnSuccess()
		return apperr.Conflict("a client with the same key or name already exists")
	case ctx.Err() != nil:
		s.breaker.Release()
		return ctx.Err()
	default:
		s.breaker.OnFailure()
		s.log.Error("client store write failed", zap.Error(err))
		return apperr.Unavailable("client store unavailable", err)
	}
}
