package model

import "time"

type ClientEventType string

const (
	ClientCreated ClientEventType = "client.created"
	ClientUpdated ClientEventType = "client.updated"
	ClientDeleted ClientEventType = "client.deleted"
)

func (t ClientEventType) String() string { return string(t) }

func (t ClientEventType) Valid() bool {
	return t == ClientCreated || t == ClientUpdated || t == ClientDeleted
}

// ClientEvent is the payload written to the outbox on every client mutation
// and stored in ClickHouse by the audit worker.
type ClientEvent struct {
	ID         string          `json:"id"          db:"event_id"`
	Type       ClientEventType `json:"type"        db:"event_type"`
	ClientKey  string          `json:"client_key"  db:"client_key"`
	ClientName string          `json:"client_name" db:"client_name"`
	Prefix     string          `json:"prefix"      db:"prefix"`
	OccurredAt time.Time       `json:"occurred_at" db:"occurred_at"`
}
