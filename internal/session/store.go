package session

import (
	"context"
	"fmt"
	"time"
)

// Record is a persisted conversation.
type Record struct {
	GUID string
	// Project is the working directory the conversation ran in.
	Project       string
	Model         string
	Title         string
	LastSessionID string
	TurnCount     int
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Turns is populated by Store.Get only.
	Turns []Turn
}

// Turn is one prompt and its answer.
type Turn struct {
	Seq        int
	Prompt     string
	Response   string
	SessionID  string
	CostUSD    float64
	DurationMs int64
	Streamed   bool
	CreatedAt  time.Time
}

// ListFilter narrows Store.List.
type ListFilter struct {
	// Project limits results to one working directory. Empty means all.
	Project string
	// Limit caps the number of records. 0 means no limit.
	Limit int
}

// Store persists conversations turn by turn.
type Store interface {
	// Create inserts a new record. Turns on rec are ignored.
	Create(ctx context.Context, rec *Record) error

	// AppendTurn adds t to the record with guid, assigning t.Seq, and updates
	// the record's last session id and turn count.
	// Returns NotFoundError if no such record exists.
	AppendTurn(ctx context.Context, guid string, t *Turn) error

	// Get returns the record with its turns in order.
	// Returns NotFoundError if no such record exists.
	Get(ctx context.Context, guid string) (*Record, error)

	// List returns records newest first, without turns.
	List(ctx context.Context, filter ListFilter) ([]*Record, error)

	// Delete removes the record and its turns.
	// Returns NotFoundError if no such record exists.
	Delete(ctx context.Context, guid string) error

	Close() error
}

// NotFoundError is returned when no record matches a GUID.
type NotFoundError struct {
	GUID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.GUID)
}
