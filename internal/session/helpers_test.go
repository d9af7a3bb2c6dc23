package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/zjrosen/claudecode/internal/claude"
	"github.com/zjrosen/claudecode/internal/process"
)

// scriptedClient answers Chat from a queue and records the resume ids.
type scriptedClient struct {
	mu        sync.Mutex
	responses []*claude.Response
	resumes   []string
	streamer  Streamer
}

func (c *scriptedClient) Chat(_ context.Context, _ claude.Prompt, resumeID string) (*claude.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumes = append(c.resumes, resumeID)
	if len(c.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func (c *scriptedClient) Stream(ctx context.Context, p claude.Prompt, resumeID string) (*process.Run, error) {
	c.mu.Lock()
	c.resumes = append(c.resumes, resumeID)
	c.mu.Unlock()
	return c.streamer.Stream(ctx, p, resumeID)
}

func (c *scriptedClient) resumeIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.resumes...)
}

func ok(result, sessionID string) *claude.Response {
	return &claude.Response{
		Success: true,
		Message: &claude.Message{Type: "result", Subtype: "success", Result: result, SessionID: sessionID, TotalCostUSD: 0.01},
	}
}

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	records map[string]*Record
	creates int
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*Record{}}
}

func (m *memStore) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("disk full")
	}
	m.creates++
	cp := *rec
	cp.Turns = nil
	m.records[rec.GUID] = &cp
	return nil
}

func (m *memStore) AppendTurn(_ context.Context, guid string, t *Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, found := m.records[guid]
	if !found {
		return &NotFoundError{GUID: guid}
	}
	t.Seq = len(rec.Turns) + 1
	rec.Turns = append(rec.Turns, *t)
	rec.TurnCount = len(rec.Turns)
	rec.LastSessionID = t.SessionID
	return nil
}

func (m *memStore) Get(_ context.Context, guid string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, found := m.records[guid]
	if !found {
		return nil, &NotFoundError{GUID: guid}
	}
	cp := *rec
	cp.Turns = append([]Turn(nil), rec.Turns...)
	return &cp, nil
}

func (m *memStore) List(context.Context, ListFilter) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Delete(_ context.Context, guid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.records[guid]; !found {
		return &NotFoundError{GUID: guid}
	}
	delete(m.records, guid)
	return nil
}

func (m *memStore) Close() error { return nil }

