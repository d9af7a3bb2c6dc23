package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stream returns script lines printing each event as one stdout line.
func Stream(events ...string) string {
	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "printf '%%s\\n' '%s'\n", ev)
	}
	return b.String()
}

// Init is a system/init event carrying sessionID.
func Init(sessionID string) string {
	return mustJSON(map[string]any{"type": "system", "subtype": "init", "session_id": sessionID})
}

// Text is a bare text event, accumulated or incremental.
func Text(s string) string {
	return mustJSON(map[string]any{"text": s})
}

// Result is a successful result event.
func Result(text, sessionID string) string {
	ev := map[string]any{"type": "result", "subtype": "success", "result": text}
	if sessionID != "" {
		ev["session_id"] = sessionID
	}
	return mustJSON(ev)
}

// ErrorResult is a result event flagged as an error.
func ErrorResult(text string) string {
	return mustJSON(map[string]any{"type": "result", "subtype": "error_during_execution", "is_error": true, "result": text})
}

// Failing is a script body that writes stderr and exits with code.
func Failing(stderr string, code int) string {
	return fmt.Sprintf("echo %q >&2\nexit %d", stderr, code)
}

// Hanging is a script body that prints events and then sleeps until killed.
func Hanging(events ...string) string {
	return Stream(events...) + "sleep 30\n"
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	if strings.ContainsRune(string(data), '\'') {
		panic("testutil: event text must not contain single quotes")
	}
	return string(data)
}
