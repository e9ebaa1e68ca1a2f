package services

import (
	"encoding/json"
	"strings"
)

const (
	jsonFence = "```json"
	fence     = "```"
)

// StripFence returns the payload of a fenced oracle reply. A ```json fence
// wins over a bare one; unfenced text is returned as-is. The result is trimmed.
func StripFence(raw string) string {
	text := raw
	if _, after, ok := strings.Cut(text, jsonFence); ok {
		text, _, _ = strings.Cut(after, fence)
	} else if _, after, ok := strings.Cut(text, fence); ok {
		text, _, _ = strings.Cut(after, fence)
	}
	return strings.TrimSpace(text)
}

// Extract decodes the oracle reply into a generic JSON value.
func Extract(raw string) (any, error) {
	var v any
	if err := ExtractInto(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// ExtractInto decodes the oracle reply into v.
func ExtractInto(raw string, v any) error {
	if err := json.Unmarshal([]byte(StripFence(raw)), v); err != nil {
		return &ExtractError{Raw: raw, Err: err}
	}
	return nil
}
