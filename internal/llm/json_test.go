package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare object",
			in:   `{"tool": "finish"}`,
			want: `{"tool": "finish"}`,
		},
		{
			name: "markdown fences",
			in:   "```json\n{\"tool\": \"finish\"}\n```",
			want: `{"tool": "finish"}`,
		},
		{
			name: "prose around object",
			in:   `Sure, here is the result: {"kpis": []} Hope that helps!`,
			want: `{"kpis": []}`,
		},
		{
			name: "nested objects",
			in:   `x {"a": {"b": {"c": 1}}} y`,
			want: `{"a": {"b": {"c": 1}}}`,
		},
		{
			name: "braces inside strings",
			in:   `{"text": "use {curly} braces and a \" quote"}`,
			want: `{"text": "use {curly} braces and a \" quote"}`,
		},
		{
			name: "first of two objects",
			in:   `{"a": 1} {"b": 2}`,
			want: `{"a": 1}`,
		},
		{
			name: "no object passes through",
			in:   "no json here",
			want: "no json here",
		},
		{
			name: "unclosed object passes through",
			in:   `{"a": 1`,
			want: `{"a": 1`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}

func TestExtractJSONProducesDecodableOutput(t *testing.T) {
	out := ExtractJSON("Model says:\n```json\n{\"kpis\": [{\"metric_name\": \"Revenue\"}]}\n```\nDone.")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "kpis")
}
