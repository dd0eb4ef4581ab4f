package pipeline

import (
	"strings"
	"testing"
)

func TestExtractAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain string field",
			raw:  `{"answer":"El aceite se cambia cada 4000 horas."}`,
			want: "El aceite se cambia cada 4000 horas.",
		},
		{
			name: "not JSON at all",
			raw:  "  respuesta en texto plano  ",
			want: "respuesta en texto plano",
		},
		{
			name: "JSON without answer field",
			raw:  `{"respuesta":"otro campo"}`,
			want: `{"respuesta":"otro campo"}`,
		},
		{
			name: "empty string field",
			raw:  `{"answer":""}`,
			want: "",
		},
		{
			name: "answer with markdown table preserved",
			raw:  `{"answer":"| Modelo | Presión |\n|---|---|\n| GX7 | 13 bar |"}`,
			want: "| Modelo | Presión |\n|---|---|\n| GX7 | 13 bar |",
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"answer\":\"con cerca\"}\n```",
			want: "con cerca",
		},
		{
			name: "fenced without language tag",
			raw:  "```\n{\"answer\":\"sin etiqueta\"}\n```",
			want: "sin etiqueta",
		},
		{
			name: "JSON array is not an envelope",
			raw:  `["a","b"]`,
			want: `["a","b"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := extractAnswer(tt.raw); got != tt.want {
				t.Errorf("extractAnswer(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// TestExtractAnswer_NestedObject verifies that a non-string answer field is
// surfaced as its serialized JSON text instead of being dropped.
func TestExtractAnswer_NestedObject(t *testing.T) {
	t.Parallel()

	got := extractAnswer(`{"answer":{"foo":"bar"}}`)
	if !strings.Contains(got, "foo") || !strings.Contains(got, "bar") {
		t.Errorf("expected serialized nested object containing foo/bar, got %q", got)
	}
}

func TestExtractAnswer_NestedArray(t *testing.T) {
	t.Parallel()

	got := extractAnswer(`{"answer":["uno","dos"]}`)
	if !strings.Contains(got, "uno") || !strings.Contains(got, "dos") {
		t.Errorf("expected serialized array, got %q", got)
	}
}
