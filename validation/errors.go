package validation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ServiceError is a failure of the validation backend itself (non-2xx or
// unreachable). The Correction screen shows it with a retry affordance; it
// never advances the wizard.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("validation service error (status %d)", e.StatusCode)
	}
	return e.Message
}

type errorEnvelope struct {
	Detail json.RawMessage `json:"detail"`
}

type fieldError struct {
	Loc []json.RawMessage `json:"loc"`
	Msg string            `json:"msg"`
}

// FlattenDetail normalizes a backend error `detail` payload, either a bare
// string or an array of {loc, msg} field errors, into one human-readable
// message, e.g. `files.0: too large`.
func FlattenDetail(detail json.RawMessage) string {
	if len(detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(detail, &s); err == nil {
		return s
	}

	var fields []fieldError
	if err := json.Unmarshal(detail, &fields); err != nil {
		return strings.Trim(string(detail), "\"")
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		loc := make([]string, 0, len(f.Loc))
		for _, seg := range f.Loc {
			loc = append(loc, strings.Trim(string(seg), "\""))
		}
		if len(loc) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(loc, "."), f.Msg))
		} else {
			parts = append(parts, f.Msg)
		}
	}
	return strings.Join(parts, "; ")
}

// flattenErrorBody extracts a single readable message from a raw error
// response body, falling back to a generic message when the body is not the
// expected envelope.
func flattenErrorBody(body []byte, statusCode int) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil {
		if msg := FlattenDetail(envelope.Detail); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("validation service returned status %d", statusCode)
}
