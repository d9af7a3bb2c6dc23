package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Decode parses one line and classifies it. The first matching rule wins:
//
//  1. type "result" with subtype "success"             -> result
//  2. type "error", or type "result" with is_error     -> error
//  3. non-empty "text" (or "content" on token/content
//     lines, or text blocks of an assistant message)   -> token
//  4. type "session", or a system init line with a
//     session_id                                       -> session
//  5. anything else                                    -> debug
//
// Result and error detection run before the text check because result
// payloads are textual too. A line that is not JSON returns a
// *MalformedLineError.
func Decode(line []byte) (Event, error) {
	raw := bytes.TrimSpace(line)
	if !json.Valid(raw) {
		var v any
		err := json.Unmarshal(raw, &v)
		return Event{}, &MalformedLineError{Line: string(line), Err: err}
	}
	rawCopy := json.RawMessage(append([]byte(nil), raw...))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		// Valid JSON but not an object: numbers, strings, arrays, null.
		return Event{Kind: EventDebug, Raw: rawCopy}, nil
	}

	typ := stringField(fields, "type")
	subtype := stringField(fields, "subtype")

	switch {
	case typ == "result" && subtype == "success":
		return Event{
			Kind:      EventResult,
			Text:      stringField(fields, "result"),
			SessionID: stringField(fields, "session_id"),
			Raw:       rawCopy,
		}, nil

	case typ == "error" || (typ == "result" && boolField(fields, "is_error")):
		return Event{
			Kind:      EventError,
			Reason:    errorReason(fields),
			SessionID: stringField(fields, "session_id"),
			Raw:       rawCopy,
		}, nil
	}

	if text := tokenText(typ, fields); text != "" {
		return Event{Kind: EventToken, Text: text, Raw: rawCopy}, nil
	}

	if typ == "session" || (typ == "system" && subtype == "init") {
		if id := stringField(fields, "session_id"); id != "" || typ == "session" {
			return Event{Kind: EventSession, SessionID: id, Raw: rawCopy}, nil
		}
	}

	return Event{Kind: EventDebug, Raw: rawCopy}, nil
}

func tokenText(typ string, fields map[string]json.RawMessage) string {
	if text := stringField(fields, "text"); text != "" {
		return text
	}
	switch typ {
	case "token", "content":
		return stringField(fields, "content")
	case "assistant":
		return assistantText(fields["message"])
	}
	return ""
}

// assistantText joins the text blocks of an assistant message line:
// {"type":"assistant","message":{"content":[{"type":"text","text":"..."}]}}
func assistantText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var msg struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// errorReason picks result, then message, then the error field, which may
// be a string or an object with a message.
func errorReason(fields map[string]json.RawMessage) string {
	if r := stringField(fields, "result"); r != "" {
		return r
	}
	if m := stringField(fields, "message"); m != "" {
		return m
	}
	if raw, ok := fields["error"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return DefaultErrorReason
}

// stringField returns fields[key] if it is a JSON string, else "".
func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func boolField(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}
