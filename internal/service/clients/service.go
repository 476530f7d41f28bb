// Package clients implements the admin operations on client records.
package clients

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/jmehdipour/monozip/internal/logger"
	"github.com/jmehdipour/monozip/internal/metrics"
	"github.com/jmehdipour/monozip/internal/model"
	"github.com/jmehdipour/monozip/internal/store"
	"github.com/jmehdipour/monozip/internal/util"
	"go.uber.org/zap"
)

// Store is the subset of *store.Store the service needs.
type Store interface {
	ListClients(ctx context.Context) store.Snapshot
	Insert(ctx context.Context, c model.ClientRecord) (model.ClientRecord, error)
	Mutate(ctx context.Context, c model.ClientRecord, expectedVersion int64) (model.ClientRecord, error)
	Remove(ctx context.Context, key string, expectedVersion int64) (model.ClientRecord, error)
}

// Input carries the editable fields of a client.
type Input struct {
	Name       string
	Prefix     string
	SuffixRule string
}

func (in Input) normalize() (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Prefix = strings.TrimSpace(in.Prefix)
	in.SuffixRule = strings.TrimSpace(in.SuffixRule)
	if in.Name == "" {
		return in, apperr.Validation("enter a client name")
	}
	if in.Prefix == "" {
		return in, apperr.Validation("enter a prefix")
	}
	if in.SuffixRule == "" {
		in.SuffixRule = model.DefaultSuffixRule
	}
	return in, nil
}

// Result is returned by every mutation. Clients is the list re-read after the
// write; Warning is set when that re-read fell back to the defaults.
type Result struct {
	Message  string
	Client   model.ClientRecord
	Clients  []model.ClientRecord
	Fallback bool
	Warning  string
}

type Service struct {
	store       Store
	adminSecret string
	log         *zap.Logger
}

func New(s Store, adminSecret string) *Service {
	return &Service{store: s, adminSecret: adminSecret, log: logger.Named("clients")}
}

// List returns the current client snapshot.
func (s *Service) List(ctx context.Context) store.Snapshot {
	return s.store.ListClients(ctx)
}

// Lookup resolves a client key against the current snapshot.
func (s *Service) Lookup(ctx context.Context, key string) (model.ClientRecord, error) {
	c, ok := s.store.ListClients(ctx).Find(key)
	if !ok {
		return model.ClientRecord{}, apperr.Validation(fmt.Sprintf("unsupported client: %s", key))
	}
	return c, nil
}

func (s *Service) authorize(presented string) error {
	if presented == "" {
		return apperr.Validation("enter the admin password")
	}
	if s.adminSecret == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(s.adminSecret)) != 1 {
		return apperr.Auth("admin password is incorrect")
	}
	return nil
}

// writableSnapshot reads the list a write is validated against. A fallback
// list means the store is down, so the write would fail anyway.
func (s *Service) writableSnapshot(ctx context.Context) (store.Snapshot, error) {
	snap := s.store.ListClients(ctx)
	if snap.Fallback {
		return snap, apperr.Unavailable("client store unavailable", fmt.Errorf("client list served from defaults"))
	}
	return snap, nil
}

// Add creates a client. The key is derived from the name and made unique.
func (s *Service) Add(ctx context.Context, adminSecret string, in Input) (res Result, err error) {
	defer func() { s.record("add", err) }()

	if err := s.authorize(adminSecret); err != nil {
		return Result{}, err
	}
	in, err = in.normalize()
	if err != nil {
		return Result{}, err
	}

	snap, err := s.writableSnapshot(ctx)
	if err != nil {
		return Result{}, err
	}

	taken := make(map[string]bool, len(snap.Clients))
	for _, c := range snap.Clients {
		if c.Name == in.Name {
			return Result{}, apperr.Conflict(fmt.Sprintf("%s is already registered", in.Name))
		}
		taken[c.Key] = true
	}

	created, err := s.store.Insert(ctx, model.ClientRecord{
		Key:        util.DeriveKey(in.Name, in.Prefix, taken, model.CustomKey),
		Name:       in.Name,
		Prefix:     in.Prefix,
		SuffixRule: in.SuffixRule,
	})
	if err != nil {
		return Result{}, err
	}

	s.log.Info("client added", zap.String("key", created.Key), zap.String("name", created.Name))
	return s.reconcile(ctx, created, fmt.Sprintf("%s was added", created.Name)), nil
}

// Update changes name, prefix and suffix rule. The key never changes.
func (s *Service) Update(ctx context.Context, adminSecret, key string, in Input, version int64) (res Result, err error) {
	defer func() { s.record("update", err) }()

	if err := s.authorize(adminSecret); err != nil {
		return Result{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" || key == model.CustomKey {
		return Result{}, apperr.Validation("select the client to update")
	}
	in, err = in.normalize()
	if err != nil {
		return Result{}, err
	}

	snap, err := s.writableSnapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	if _, ok := snap.Find(key); !ok {
		return Result{}, apperr.NotFound(fmt.Sprintf("client %q does not exist", key))
	}
	for _, c := range snap.Clients {
		if c.Key != key && c.Name == in.Name {
			return Result{}, apperr.Conflict(fmt.Sprintf("%s is already registered", in.Name))
		}
	}

	updated, err := s.store.Mutate(ctx, model.ClientRecord{
		Key:        key,
		Name:       in.Name,
		Prefix:     in.Prefix,
		SuffixRule: in.SuffixRule,
	}, version)
	if err != nil {
		return Result{}, err
	}

	s.log.Info("client updated", zap.String("key", updated.Key), zap.Int64("version", updated.Version))
	return s.reconcile(ctx, updated, fmt.Sprintf("%s was updated", updated.Name)), nil
}

// Delete removes a client permanently.
func (s *Service) Delete(ctx context.Context, adminSecret, key string, version int64) (res Result, err error) {
	defer func() { s.record("delete", err) }()

	if err := s.authorize(adminSecret); err != nil {
		return Result{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Result{}, apperr.Validation("select the client to delete")
	}
	if key == model.CustomKey {
		return Result{}, apperr.Validation("the custom entry cannot be deleted")
	}

	snap, err := s.writableSnapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	if _, ok := snap.Find(key); !ok {
		return Result{}, apperr.NotFound(fmt.Sprintf("client %q does not exist", key))
	}

	removed, err := s.store.Remove(ctx, key, version)
	if err != nil {
		return Result{}, err
	}

	s.log.Info("client deleted", zap.String("key", removed.Key))
	return s.reconcile(ctx, removed, fmt.Sprintf("%s was deleted", removed.Name)), nil
}

// reconcile re-reads the list after a successful write. A failed re-read is
// reported as a warning; the write itself stands.
func (s *Service) reconcile(ctx context.Context, c model.ClientRecord, msg string) Result {
	snap := s.store.ListClients(ctx)
	res := Result{Message: msg, Client: c, Clients: snap.Clients, Fallback: snap.Fallback}
	if snap.Fallback {
		res.Warning = "the change was saved, but the client list could not be reloaded"
		s.log.Warn("re-fetch after mutation fell back to defaults", zap.String("key", c.Key))
	}
	return res
}

func (s *Service) record(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	metrics.AdminOps.WithLabelValues(op, result).Inc()
}
