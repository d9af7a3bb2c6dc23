package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/claudecode/internal/session"
)

const conversationColumns = `id, guid, project, model, title, last_session_id, turn_count, created_at, updated_at`

// sessionStore implements session.Store.
type sessionStore struct {
	db  *sql.DB
	now func() time.Time
}

func newSessionStore(db *sql.DB) *sessionStore {
	return &sessionStore{db: db, now: time.Now}
}

var _ session.Store = (*sessionStore)(nil)

func scanConversation(scanner interface{ Scan(...any) error }) (*conversationModel, error) {
	var m conversationModel
	err := scanner.Scan(
		&m.ID, &m.GUID, &m.Project, &m.Model, &m.Title, &m.LastSessionID,
		&m.TurnCount, &m.CreatedAt, &m.UpdatedAt,
	)
	return &m, err
}

// Create inserts rec. Zero timestamps are set to now.
func (s *sessionStore) Create(ctx context.Context, rec *session.Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	m := toConversationModel(rec)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (guid, project, model, title, last_session_id, turn_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.GUID, m.Project, m.Model, m.Title, m.LastSessionID, m.TurnCount, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// AppendTurn inserts t with the next sequence number and bumps the
// conversation's counters in one transaction.
func (s *sessionStore) AppendTurn(ctx context.Context, guid string, t *session.Turn) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT id, turn_count FROM conversations WHERE guid = ?`, guid,
	).Scan(&id, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return &session.NotFoundError{GUID: guid}
	}
	if err != nil {
		return fmt.Errorf("failed to find conversation: %w", err)
	}

	t.Seq = count + 1
	m := toTurnModel(t)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, seq, prompt, response, session_id, cost_usd, duration_ms, streamed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, m.Seq, m.Prompt, m.Response, m.SessionID, m.CostUSD, m.DurationMs, m.Streamed, m.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations
		 SET turn_count = ?, last_session_id = COALESCE(?, last_session_id), updated_at = ?
		 WHERE id = ?`,
		m.Seq, m.SessionID, m.CreatedAt, id,
	); err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

// Get returns the conversation with its turns ordered by sequence.
func (s *sessionStore) Get(ctx context.Context, guid string) (*session.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE guid = ?`, guid)
	m, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &session.NotFoundError{GUID: guid}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	rec := m.toRecord()

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, prompt, response, session_id, cost_usd, duration_ms, streamed, created_at
		 FROM turns WHERE conversation_id = ? ORDER BY seq`, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tm turnModel
		if err := rows.Scan(&tm.Seq, &tm.Prompt, &tm.Response, &tm.SessionID,
			&tm.CostUSD, &tm.DurationMs, &tm.Streamed, &tm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		rec.Turns = append(rec.Turns, tm.toTurn())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turn rows: %w", err)
	}
	return rec, nil
}

// List returns conversations newest first.
func (s *sessionStore) List(ctx context.Context, filter session.ListFilter) ([]*session.Record, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE 1 = 1`
	var args []any

	if filter.Project != "" {
		query += ` AND project = ?`
		args = append(args, filter.Project)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*session.Record
	for rows.Next() {
		m, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		out = append(out, m.toRecord())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}
	return out, nil
}

// Delete removes the conversation. Its turns go with it through the
// foreign key cascade.
func (s *sessionStore) Delete(ctx context.Context, guid string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE guid = ?`, guid)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return &session.NotFoundError{GUID: guid}
	}
	return nil
}

// Close is a no-op; the connection belongs to DB.
func (s *sessionStore) Close() error {
	return nil
}
