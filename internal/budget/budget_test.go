package budget

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"ab", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 4000), 1000},
	}
	for _, tt := range tests {
		if got := Estimate(tt.in); got != tt.want {
			t.Errorf("Estimate(len %d) = %d, want %d", len(tt.in), got, tt.want)
		}
	}
}

func TestTrimChunks_FitsWithinBudget(t *testing.T) {
	t.Parallel()

	chunks := []string{
		strings.Repeat("a", 400), // 100 tokens
		strings.Repeat("b", 400),
		strings.Repeat("c", 400),
	}

	got := TrimChunks(chunks, 300)
	if len(got) != 3 {
		t.Errorf("expected all 3 chunks within budget, got %d", len(got))
	}
}

func TestTrimChunks_DropsTail(t *testing.T) {
	t.Parallel()

	chunks := []string{
		strings.Repeat("a", 400), // 100 tokens
		strings.Repeat("b", 400),
		strings.Repeat("c", 400),
	}

	got := TrimChunks(chunks, 250)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	// Similarity order is preserved: the tail is dropped, never the head.
	if got[0][0] != 'a' || got[1][0] != 'b' {
		t.Error("expected head chunks preserved in order")
	}
}

func TestTrimChunks_FirstChunkAlwaysKept(t *testing.T) {
	t.Parallel()

	chunks := []string{strings.Repeat("a", 4000)} // 1000 tokens

	got := TrimChunks(chunks, 10)
	if len(got) != 1 {
		t.Errorf("expected oversized first chunk kept, got %d chunks", len(got))
	}
}

func TestTrimChunks_ZeroBudgetDisablesTrimming(t *testing.T) {
	t.Parallel()

	chunks := []string{"a", "b"}
	if got := TrimChunks(chunks, 0); len(got) != 2 {
		t.Errorf("expected no trimming with zero budget, got %d", len(got))
	}
}

func TestTrimChunks_Empty(t *testing.T) {
	t.Parallel()

	if got := TrimChunks(nil, 100); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestTrimChunks_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	chunks := []string{strings.Repeat("a", 400), strings.Repeat("b", 400)}
	TrimChunks(chunks, 50)

	if len(chunks) != 2 {
		t.Error("input slice length changed")
	}
}
