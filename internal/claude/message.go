package claude

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is the JSON document the CLI prints in json output mode.
type Message struct {
	Type          string  `json:"type"`
	Subtype       string  `json:"subtype,omitempty"`
	Result        string  `json:"result,omitempty"`
	SessionID     string  `json:"session_id,omitempty"`
	IsError       bool    `json:"is_error"`
	TotalCostUSD  float64 `json:"total_cost_usd,omitempty"`
	CostUSD       float64 `json:"cost_usd,omitempty"`
	DurationMs    int64   `json:"duration_ms,omitempty"`
	DurationAPIMs int64   `json:"duration_api_ms,omitempty"`
	NumTurns      int     `json:"num_turns,omitempty"`
	Usage         *Usage  `json:"usage,omitempty"`
}

// Usage is the token accounting attached to a result.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// Cost returns the reported cost, preferring total_cost_usd.
func (m *Message) Cost() float64 {
	if m.TotalCostUSD != 0 {
		return m.TotalCostUSD
	}
	return m.CostUSD
}

// authFailureMarkers identify an expired or rejected OAuth credential.
var authFailureMarkers = []string{"Invalid bearer token", "OAuth"}

// IsAuthFailure reports whether m signals a credential problem that a
// token refresh may fix.
func (m *Message) IsAuthFailure() bool {
	if m == nil || !m.IsError {
		return false
	}
	for _, marker := range authFailureMarkers {
		if strings.Contains(m.Result, marker) {
			return true
		}
	}
	return false
}

// ParseDocument parses json-mode stdout. The output is either one object or
// an array of objects, in which case the last element is the result. Empty
// output yields (nil, nil).
func ParseDocument(stdout string) (*Message, error) {
	data := strings.TrimSpace(stdout)
	if data == "" {
		return nil, nil
	}

	if strings.HasPrefix(data, "[") {
		var docs []json.RawMessage
		if err := json.Unmarshal([]byte(data), &docs); err != nil {
			return nil, fmt.Errorf("parse response array: %w", err)
		}
		if len(docs) == 0 {
			return nil, nil
		}
		var msg Message
		if err := json.Unmarshal(docs[len(docs)-1], &msg); err != nil {
			return nil, fmt.Errorf("parse last response element: %w", err)
		}
		return &msg, nil
	}

	var msg Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &msg, nil
}

// Response is the outcome of a non-streaming Chat.
type Response struct {
	// Success is true when the CLI exited 0.
	Success bool
	// Message is the parsed document on success.
	Message *Message
	// Error is the parsed document on a non-zero exit.
	Error    *Message
	ExitCode int
	Stderr   string
	// ParseErr is set when stdout was present but not valid JSON.
	ParseErr error
	// Attempts is 2 when an auth failure triggered a refresh and retry.
	Attempts int
}

// document returns whichever of Message or Error is set.
func (r *Response) document() *Message {
	if r.Message != nil {
		return r.Message
	}
	return r.Error
}

// SessionID returns the session id of the parsed document, if any.
func (r *Response) SessionID() string {
	if d := r.document(); d != nil {
		return d.SessionID
	}
	return ""
}
