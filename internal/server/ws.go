package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zjrosen/claudecode/internal/claude"
	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/process"
	"github.com/zjrosen/claudecode/internal/protocol"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
)

// wsRequest is a client frame on /ws.
type wsRequest struct {
	Type            string `json:"type"` // prompt, abort
	Prompt          string `json:"prompt,omitempty"`
	Model           string `json:"model,omitempty"`
	SkipPermissions bool   `json:"skipPermissions,omitempty"`
	Resume          string `json:"resume,omitempty"`
}

// wsMessage is a server frame on /ws.
type wsMessage struct {
	Type      string          `json:"type"`
	RunID     string          `json:"run_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// wsConn serialises writes and keeps the connection alive with pings.
type wsConn struct {
	conn     *websocket.Conn
	pongWait time.Duration
	mu       sync.Mutex
}

// newWSConn arms the read deadline and pong handler. It must run on the
// handler goroutine before readLoop starts.
func newWSConn(raw *websocket.Conn, pongWait time.Duration) *wsConn {
	c := &wsConn{conn: raw, pongWait: pongWait}
	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	return c
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// keepalive pings until ctx ends or a ping fails.
func (c *wsConn) keepalive(ctx context.Context) {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

// readLoop decodes client frames into out until the connection fails.
func (c *wsConn) readLoop(ctx context.Context, out chan<- wsRequest, closed chan<- struct{}) {
	defer close(closed)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			_ = c.writeJSON(wsMessage{Type: "error", Message: "invalid message: " + err.Error()})
			continue
		}
		select {
		case out <- req:
		case <-ctx.Done():
			return
		}
	}
}

// handleWS runs one prompt at a time per connection. A client "abort" or
// a disconnect aborts the current run.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(log.CatServer, "websocket upgrade failed", "error", err)
		return
	}
	defer raw.Close()
	conn := newWSConn(raw, wsPongWait)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go conn.keepalive(ctx)

	requests := make(chan wsRequest, 8)
	closed := make(chan struct{})
	go conn.readLoop(ctx, requests, closed)

	var (
		run   *process.Run
		notes <-chan protocol.Notification
	)
	defer func() {
		if run != nil {
			run.Close()
		}
	}()

	for {
		select {
		case <-closed:
			if run != nil {
				log.Info(log.CatServer, "websocket closed, aborting run", "run_id", run.ID())
				run.Abort()
			}
			return

		case req := <-requests:
			switch req.Type {
			case "prompt":
				if run != nil {
					_ = conn.writeJSON(wsMessage{Type: "error", Message: "a run is already in progress", RunID: run.ID()})
					continue
				}
				if req.Prompt == "" {
					_ = conn.writeJSON(wsMessage{Type: "error", Message: "prompt is required"})
					continue
				}
				client := s.newClient(s.requestOptions(req.Model, req.SkipPermissions))
				run, err = client.Stream(ctx, claude.Text(req.Prompt), req.Resume)
				if err != nil {
					run = nil
					_ = conn.writeJSON(wsMessage{Type: "error", Message: err.Error()})
					continue
				}
				s.runs.Track(run, RunInfo{Prompt: req.Prompt, Model: req.Model, Transport: "websocket"})
				notes = run.Notifications()
				_ = conn.writeJSON(wsMessage{Type: "started", RunID: run.ID()})

			case "abort":
				if run != nil {
					run.Abort()
				}

			default:
				_ = conn.writeJSON(wsMessage{Type: "error", Message: "unknown message type " + req.Type})
			}

		case n, ok := <-notes:
			if !ok {
				run.Close()
				run, notes = nil, nil
				continue
			}
			if err := conn.writeJSON(notificationMessage(run.ID(), n)); err != nil {
				run.Abort()
			}
		}
	}
}

func notificationMessage(runID string, n protocol.Notification) wsMessage {
	m := wsMessage{Type: n.Kind.String(), RunID: runID, SessionID: n.SessionID}
	switch n.Kind {
	case protocol.NotifyToken, protocol.NotifyComplete, protocol.NotifyDiagnostic:
		m.Content = n.Text
	case protocol.NotifyDebug:
		m.Raw = n.Raw
	}
	if n.Err != nil {
		m.Message = n.Err.Error()
	}
	return m
}

// handleLogsWS streams formatted log lines.
func (s *Server) handleLogsWS(w http.ResponseWriter, r *http.Request) {
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer raw.Close()
	conn := newWSConn(raw, wsPongWait)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go conn.keepalive(ctx)

	requests := make(chan wsRequest, 1)
	closed := make(chan struct{})
	go conn.readLoop(ctx, requests, closed)

	entries := log.Subscribe(ctx)
	if entries == nil {
		_ = conn.writeJSON(wsMessage{Type: "error", Message: "logging is not enabled"})
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-requests:
		case ev, ok := <-entries:
			if !ok {
				return
			}
			if err := conn.writeJSON(wsMessage{Type: "log", Content: ev.Payload}); err != nil {
				return
			}
		}
	}
}
