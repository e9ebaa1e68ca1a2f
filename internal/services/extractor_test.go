package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFence(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"json fence", "Here you go:\n```json\n{\"a\": 1}\n```\nthanks", `{"a": 1}`},
		{"json fence unterminated", "```json\n[1, 2]", "[1, 2]"},
		{"bare fence", "```\n{\"b\": true}\n```", `{"b": true}`},
		{"json fence wins over earlier bare fence", "```\nignored\n```\n```json\n{\"c\": 3}\n```", `{"c": 3}`},
		{"no fence", "  {\"d\": null}  ", `{"d": null}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripFence(tc.raw))
		})
	}
}

func TestExtract(t *testing.T) {
	v, err := Extract("```json\n{\"topic\": \"x\", \"n\": [1, 2]}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"topic": "x", "n": []any{1.0, 2.0}}, v)
}

func TestExtractRejectsProse(t *testing.T) {
	_, err := Extract("I could not find anything about that event.")
	var extractErr *ExtractError
	require.ErrorAs(t, err, &extractErr)
	assert.Contains(t, extractErr.Raw, "could not find")
}

func TestExtractInto(t *testing.T) {
	var out struct {
		Topic string `json:"topic"`
	}
	require.NoError(t, ExtractInto("```\n{\"topic\": \"Moon\"}\n```", &out))
	assert.Equal(t, "Moon", out.Topic)

	var list []int
	assert.Error(t, ExtractInto("```json\nnot json\n```", &list))
}
