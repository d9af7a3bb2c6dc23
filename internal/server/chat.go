package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zjrosen/claudecode/internal/claude"
	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/process"
	"github.com/zjrosen/claudecode/internal/protocol"
)

// keepaliveInterval spaces SSE comment lines on idle streams.
const keepaliveInterval = 15 * time.Second

// ChatRequest is read from the query string or a JSON body.
type ChatRequest struct {
	Prompt          string `json:"prompt"`
	Stream          bool   `json:"stream"`
	Model           string `json:"model"`
	SkipPermissions bool   `json:"skipPermissions"`
	Resume          string `json:"resume"`
	SystemPrompt    string `json:"systemPrompt"`
}

// ChatResponse is the non-streaming /chat body.
type ChatResponse struct {
	Result string    `json:"result"`
	Debug  ChatDebug `json:"debug"`
}

// ChatDebug carries run metadata alongside the result.
type ChatDebug struct {
	DurationMs int64   `json:"duration_ms"`
	CostUSD    float64 `json:"cost_usd"`
	SessionID  string  `json:"session_id"`
	Attempts   int     `json:"attempts"`
}

// StreamEvent is one SSE data payload.
type StreamEvent struct {
	Type      string `json:"type"` // token, complete, error
	Content   string `json:"content,omitempty"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func parseChatRequest(r *http.Request) (ChatRequest, error) {
	var req ChatRequest
	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %w", err)
		}
	}

	q := r.URL.Query()
	if v := q.Get("prompt"); v != "" {
		req.Prompt = v
	}
	if v := q.Get("model"); v != "" {
		req.Model = v
	}
	if v := q.Get("resume"); v != "" {
		req.Resume = v
	}
	if v := q.Get("systemPrompt"); v != "" {
		req.SystemPrompt = v
	}
	if v := q.Get("stream"); v != "" {
		req.Stream, _ = strconv.ParseBool(v)
	}
	if v := q.Get("skipPermissions"); v != "" {
		req.SkipPermissions, _ = strconv.ParseBool(v)
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return req, errors.New("prompt is required")
	}
	return req, nil
}

func (req ChatRequest) prompt() claude.Prompt {
	return claude.Prompt{Text: req.Prompt, SystemPrompt: req.SystemPrompt}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := parseChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	log.Debug(log.CatServer, "chat request", "stream", req.Stream, "model", req.Model, "resume", req.Resume)

	if req.Stream {
		s.streamChat(w, r, req)
		return
	}
	s.blockingChat(w, r, req)
}

func (s *Server) blockingChat(w http.ResponseWriter, r *http.Request, req ChatRequest) {
	client := s.newClient(s.requestOptions(req.Model, req.SkipPermissions))

	resp, err := client.Chat(r.Context(), req.prompt(), req.Resume)
	if err != nil {
		log.ErrorErr(log.CatServer, "chat failed", err)
		writeError(w, http.StatusBadGateway, ErrUpstream, err.Error())
		return
	}
	if !resp.Success || resp.Message == nil {
		writeError(w, http.StatusBadGateway, ErrUpstream, failureMessage(resp))
		return
	}

	msg := resp.Message
	writeJSON(w, http.StatusOK, ChatResponse{
		Result: msg.Result,
		Debug: ChatDebug{
			DurationMs: msg.DurationMs,
			CostUSD:    msg.Cost(),
			SessionID:  msg.SessionID,
			Attempts:   resp.Attempts,
		},
	})
}

// failureMessage picks the most useful description of a failed Chat.
func failureMessage(resp *claude.Response) string {
	if resp.Error != nil && resp.Error.Result != "" {
		return resp.Error.Result
	}
	if resp.Stderr != "" {
		return resp.Stderr
	}
	if resp.ParseErr != nil {
		return resp.ParseErr.Error()
	}
	if resp.Success {
		return "unexpected response format from claude"
	}
	return fmt.Sprintf("claude exited with code %d", resp.ExitCode)
}

func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrInternalError, "streaming not supported")
		return
	}

	client := s.newClient(s.requestOptions(req.Model, req.SkipPermissions))
	run, err := client.Stream(r.Context(), req.prompt(), req.Resume)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	defer run.Close()
	s.runs.Track(run, RunInfo{Prompt: req.Prompt, Model: req.Model, Transport: "sse"})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Run-ID", run.ID())
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	notes := run.Notifications()
	for {
		select {
		case <-r.Context().Done():
			log.Info(log.CatServer, "client disconnected, aborting run", "run_id", run.ID())
			run.Abort()
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case n, ok := <-notes:
			if !ok {
				return
			}
			ev, send := streamEvent(n)
			if !send {
				continue
			}
			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			if n.IsTerminal() {
				return
			}
		}
	}
}

// streamEvent maps a notification onto the SSE payload. Debug, session and
// diagnostic notifications are not forwarded.
func streamEvent(n protocol.Notification) (StreamEvent, bool) {
	switch n.Kind {
	case protocol.NotifyToken:
		return StreamEvent{Type: "token", Content: n.Text}, true
	case protocol.NotifyComplete:
		return StreamEvent{Type: "complete", Content: n.Text, SessionID: n.SessionID}, true
	case protocol.NotifyError, protocol.NotifyAborted:
		msg := process.ErrAborted.Error()
		if n.Err != nil {
			msg = n.Err.Error()
		}
		return StreamEvent{Type: "error", Message: msg, SessionID: n.SessionID}, true
	default:
		return StreamEvent{}, false
	}
}

// handleRunEvents streams run lifecycle events as SSE.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrInternalError, "streaming not supported")
		return
	}

	events := s.runs.Subscribe(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, _ := json.Marshal(ev.Payload)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
