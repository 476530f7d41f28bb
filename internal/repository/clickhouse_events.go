package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/monozip/internal/model"
	"github.com/jmoiron/sqlx"
)

// EventsRepository stores and lists client audit events in ClickHouse.
type EventsRepository interface {
	InsertBatch(ctx context.Context, events []model.ClientEvent) error
	ListRecent(ctx context.Context, clientKey string, limit int) ([]model.ClientEvent, error)
}

type chEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHEventsRepository(ch *sqlx.DB) EventsRepository {
	return &chEventsRepository{ch: ch}
}

// InsertBatch sends all events as one ClickHouse block.
func (r *chEventsRepository) InsertBatch(ctx context.Context, events []model.ClientEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO client_events (event_id, event_type, client_key, client_name, prefix, occurred_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.ID, ev.Type.String(), ev.ClientKey, ev.ClientName, ev.Prefix, ev.OccurredAt,
		); err != nil {
			return fmt.Errorf("append event %s: %w", ev.ID, err)
		}
	}

	return tx.Commit()
}

func (r *chEventsRepository) ListRecent(ctx context.Context, clientKey string, limit int) ([]model.ClientEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := `
		SELECT event_id, event_type, client_key, client_name, prefix, occurred_at
		FROM client_events FINAL
	`
	var args []any
	if clientKey != "" {
		q += " WHERE client_key = ?"
		args = append(args, clientKey)
	}
	q += " ORDER BY occurred_at DESC LIMIT ?"
	args = append(args, limit)

	var rows []model.ClientEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
