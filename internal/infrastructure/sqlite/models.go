package sqlite

import (
	"database/sql"
	"time"

	"github.com/zjrosen/claudecode/internal/session"
)

// conversationModel is a row of the conversations table. Times are Unix
// milliseconds.
type conversationModel struct {
	ID            int64
	GUID          string
	Project       string
	Model         string
	Title         string
	LastSessionID sql.NullString
	TurnCount     int
	CreatedAt     int64
	UpdatedAt     int64
}

func toConversationModel(r *session.Record) *conversationModel {
	m := &conversationModel{
		GUID:      r.GUID,
		Project:   r.Project,
		Model:     r.Model,
		Title:     r.Title,
		TurnCount: r.TurnCount,
		CreatedAt: r.CreatedAt.UnixMilli(),
		UpdatedAt: r.UpdatedAt.UnixMilli(),
	}
	if r.LastSessionID != "" {
		m.LastSessionID = sql.NullString{String: r.LastSessionID, Valid: true}
	}
	return m
}

func (m *conversationModel) toRecord() *session.Record {
	return &session.Record{
		GUID:          m.GUID,
		Project:       m.Project,
		Model:         m.Model,
		Title:         m.Title,
		LastSessionID: m.LastSessionID.String,
		TurnCount:     m.TurnCount,
		CreatedAt:     time.UnixMilli(m.CreatedAt),
		UpdatedAt:     time.UnixMilli(m.UpdatedAt),
	}
}

// turnModel is a row of the turns table.
type turnModel struct {
	Seq        int
	Prompt     string
	Response   string
	SessionID  sql.NullString
	CostUSD    float64
	DurationMs int64
	Streamed   bool
	CreatedAt  int64
}

func toTurnModel(t *session.Turn) *turnModel {
	m := &turnModel{
		Seq:        t.Seq,
		Prompt:     t.Prompt,
		Response:   t.Response,
		CostUSD:    t.CostUSD,
		DurationMs: t.DurationMs,
		Streamed:   t.Streamed,
		CreatedAt:  t.CreatedAt.UnixMilli(),
	}
	if t.SessionID != "" {
		m.SessionID = sql.NullString{String: t.SessionID, Valid: true}
	}
	return m
}

func (m *turnModel) toTurn() session.Turn {
	return session.Turn{
		Seq:        m.Seq,
		Prompt:     m.Prompt,
		Response:   m.Response,
		SessionID:  m.SessionID.String,
		CostUSD:    m.CostUSD,
		DurationMs: m.DurationMs,
		Streamed:   m.Streamed,
		CreatedAt:  time.UnixMilli(m.CreatedAt),
	}
}
