// Package session keeps a multi-turn conversation with the claude CLI,
// resuming each prompt from the session id the previous answer returned.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"

	"github.com/zjrosen/claudecode/internal/claude"
	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/process"
)

// ErrNoResponse is returned when the CLI produced no message for a prompt.
var ErrNoResponse = errors.New("no message returned from claude")

// titleLength is the grapheme limit for a stored conversation title.
const titleLength = 60

// Chatter runs a prompt to completion.
type Chatter interface {
	Chat(ctx context.Context, p claude.Prompt, resumeID string) (*claude.Response, error)
}

// Streamer starts a streaming run.
type Streamer interface {
	Stream(ctx context.Context, p claude.Prompt, resumeID string) (*process.Run, error)
}

// Client is what a Session talks to. *claude.Client satisfies it.
type Client interface {
	Chatter
	Streamer
}

// Session is a conversation. Its methods are safe for concurrent use, but
// prompts should be issued one at a time so each resumes from the last.
type Session struct {
	client Client
	store  Store
	guid   string
	now    func() time.Time

	project string
	model   string

	mu         sync.Mutex
	sessionIDs []string
	messages   []*claude.Message
	turns      []Turn
	persisted  bool

	// recording tracks streamed turns that have not been recorded yet.
	recording sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithStore persists every completed turn.
func WithStore(s Store) Option {
	return func(sess *Session) {
		sess.store = s
	}
}

// WithGUID sets the conversation id instead of generating one.
func WithGUID(guid string) Option {
	return func(sess *Session) {
		if guid != "" {
			sess.guid = guid
		}
	}
}

// WithMetadata records the project and model on the stored record.
func WithMetadata(project, model string) Option {
	return func(sess *Session) {
		sess.project = project
		sess.model = model
	}
}

// WithClock overrides the time source for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(sess *Session) {
		sess.now = now
	}
}

// New creates an empty conversation.
func New(client Client, opts ...Option) *Session {
	s := &Session{
		client: client,
		guid:   uuid.NewString(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates a conversation and sends its first prompt.
func Start(ctx context.Context, client Client, p claude.Prompt, opts ...Option) (*Session, *claude.Message, error) {
	s := New(client, opts...)
	msg, err := s.Prompt(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	return s, msg, nil
}

// Resume continues a stored conversation from its last session id.
func Resume(client Client, rec *Record, opts ...Option) *Session {
	s := New(client, append([]Option{WithGUID(rec.GUID), WithMetadata(rec.Project, rec.Model)}, opts...)...)
	s.persisted = true
	for _, t := range rec.Turns {
		s.turns = append(s.turns, t)
		if t.SessionID != "" {
			s.sessionIDs = append(s.sessionIDs, t.SessionID)
		}
	}
	if len(s.sessionIDs) == 0 && rec.LastSessionID != "" {
		s.sessionIDs = append(s.sessionIDs, rec.LastSessionID)
	}
	return s
}

// GUID returns the conversation id.
func (s *Session) GUID() string {
	return s.guid
}

// SessionIDs returns the CLI session ids seen, oldest first.
func (s *Session) SessionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sessionIDs...)
}

// Messages returns the response documents from Prompt, oldest first.
func (s *Session) Messages() []*claude.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*claude.Message(nil), s.messages...)
}

// Turns returns the recorded turns, oldest first.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

// LastSessionID is the id the next prompt resumes, or "" before the first
// answer.
func (s *Session) LastSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessionIDs) == 0 {
		return ""
	}
	return s.sessionIDs[len(s.sessionIDs)-1]
}

// Prompt sends p resuming the last session and records the answer.
// A response without a message, such as a non-zero exit, is ErrNoResponse.
func (s *Session) Prompt(ctx context.Context, p claude.Prompt) (*claude.Message, error) {
	s.recording.Wait()
	resp, err := s.client.Chat(ctx, p, s.LastSessionID())
	if err != nil {
		return nil, err
	}
	if resp.Message == nil {
		log.Error(log.CatSession, "prompt returned no message",
			"guid", s.guid, "exit_code", resp.ExitCode, "stderr", resp.Stderr)
		return nil, ErrNoResponse
	}

	msg := resp.Message
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.record(ctx, Turn{
		Prompt:     p.Text,
		Response:   msg.Result,
		SessionID:  msg.SessionID,
		CostUSD:    msg.Cost(),
		DurationMs: msg.DurationMs,
	})
	return msg, nil
}

// Stream starts a streaming run resuming the last session. The turn is
// recorded once the run completes; failed and aborted runs are not. The
// next Prompt or Stream waits for that recording so it resumes correctly.
func (s *Session) Stream(ctx context.Context, p claude.Prompt) (*process.Run, error) {
	s.recording.Wait()
	started := s.now()
	run, err := s.client.Stream(ctx, p, s.LastSessionID())
	if err != nil {
		return nil, err
	}

	s.recording.Add(1)
	go func() {
		defer s.recording.Done()
		out := run.Wait()
		if out.Kind != process.Completed {
			log.Debug(log.CatSession, "stream not recorded", "guid", s.guid, "outcome", out.Kind.String())
			return
		}
		s.record(context.WithoutCancel(ctx), Turn{
			Prompt:     p.Text,
			Response:   out.Text,
			SessionID:  out.SessionID,
			DurationMs: s.now().Sub(started).Milliseconds(),
			Streamed:   true,
		})
	}()
	return run, nil
}

// Wait blocks until every streamed turn has finished and been recorded.
func (s *Session) Wait() {
	s.recording.Wait()
}

// record appends t and persists it. Persistence failures are logged and
// do not fail the turn.
func (s *Session) record(ctx context.Context, t Turn) {
	t.CreatedAt = s.now()

	s.mu.Lock()
	t.Seq = len(s.turns) + 1
	if t.SessionID != "" {
		s.sessionIDs = append(s.sessionIDs, t.SessionID)
	}
	s.turns = append(s.turns, t)
	needCreate := s.store != nil && !s.persisted
	s.mu.Unlock()

	log.Debug(log.CatSession, "turn recorded", "guid", s.guid, "seq", t.Seq, "session_id", t.SessionID)
	if s.store == nil {
		return
	}

	if needCreate {
		rec := &Record{
			GUID:      s.guid,
			Project:   s.project,
			Model:     s.model,
			Title:     Title(t.Prompt),
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.CreatedAt,
		}
		if err := s.store.Create(ctx, rec); err != nil {
			log.ErrorErr(log.CatSession, "failed to create session record", err, "guid", s.guid)
			return
		}
		s.mu.Lock()
		s.persisted = true
		s.mu.Unlock()
	}
	if err := s.store.AppendTurn(ctx, s.guid, &t); err != nil {
		log.ErrorErr(log.CatSession, "failed to persist turn", err, "guid", s.guid, "seq", t.Seq)
	}
}

// Title shortens a prompt to a one-line title of at most titleLength
// grapheme clusters.
func Title(prompt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(prompt), "\n")

	var (
		out   []byte
		count int
		state = -1
		rest  = line
		c     string
	)
	for len(rest) > 0 {
		if count == titleLength {
			return string(out) + "…"
		}
		c, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		out = append(out, c...)
		count++
	}
	return string(out)
}
