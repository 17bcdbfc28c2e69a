package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ResponseError is a non-2xx backend answer.
type ResponseError struct {
	Status  int
	Message string

	// Payload is the decoded JSON object body, nil when the body was not
	// a JSON object.
	Payload map[string]any
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Message)
}

// TransportError is a backend call that could not complete.
type TransportError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("backend %s timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("backend %s unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// messageKeys are checked in order for a human-readable error message.
var messageKeys = []string{"error", "detail", "message", "non_field_errors"}

// ExtractMessage pulls the backend's error message out of a response body.
// It understands {"error": …}, {"detail": …}, {"message": …}, field error
// maps like {"email": ["already taken"]} and falls back to the status text.
func ExtractMessage(body []byte, status int) (string, map[string]any) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "<") {
			return text, nil
		}
		return http.StatusText(status), nil
	}

	for _, key := range messageKeys {
		if msg := firstString(payload[key]); msg != "" {
			return msg, payload
		}
	}

	// Field errors: report the first field in a stable order.
	fields := make([]string, 0, len(payload))
	for k := range payload {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if msg := firstString(payload[field]); msg != "" {
			return field + ": " + msg, payload
		}
	}

	return http.StatusText(status), payload
}

// firstString returns v as a string, or the first string inside a list or
// nested {"message": …} object.
func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s := firstString(item); s != "" {
				return s
			}
		}
	case map[string]any:
		for _, key := range messageKeys {
			if s := firstString(t[key]); s != "" {
				return s
			}
		}
	}
	return ""
}
