package model

import "time"

// CustomKey identifies the free-text pseudo-client. It is never persisted.
const CustomKey = "custom"

// DefaultSuffixRule describes the only suffix algorithm the generator applies.
const DefaultSuffixRule = "date as month+day"

// ClientRecord is the DB entity persisted in the clients table.
type ClientRecord struct {
	ID         int64     `db:"id"          json:"-"`
	Key        string    `db:"client_key"  json:"key"`
	Name       string    `db:"name"        json:"name"`
	Prefix     string    `db:"prefix"      json:"prefix"`
	SuffixRule string    `db:"suffix_rule" json:"suffixRule"`
	Version    int64     `db:"version"     json:"version"`
	CreatedAt  time.Time `db:"created_at"  json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updatedAt"`
}

type TargetKind int

const (
	TargetClient TargetKind = iota
	TargetFreeText
)

// Target is what a password is generated for: a persisted client or free text.
type Target struct {
	Kind   TargetKind
	Client *ClientRecord // set when Kind == TargetClient
	Text   string        // set when Kind == TargetFreeText
}

func ClientTarget(c ClientRecord) Target { return Target{Kind: TargetClient, Client: &c} }

func FreeTextTarget(text string) Target { return Target{Kind: TargetFreeText, Text: text} }
