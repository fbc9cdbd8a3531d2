package recipe

import (
	"io"
	"strings"
	"testing"
)

func readAll(t *testing.T, input string) []string {
	t.Helper()
	r := NewChunkReader(strings.NewReader(input))
	var chunks []string
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			return chunks
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		chunks = append(chunks, chunk)
	}
}

func TestChunksBasic(t *testing.T) {
	got := readAll(t, "one!two!three!")
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunksBangEscape(t *testing.T) {
	got := readAll(t, "say: 'hi!!'!next!")
	if len(got) != 2 || got[0] != "say: 'hi!'" || got[1] != "next" {
		t.Errorf("got %q", got)
	}
}

func TestChunksTrailingUnterminated(t *testing.T) {
	got := readAll(t, "done!partial")
	if len(got) != 2 || got[1] != "partial" {
		t.Errorf("got %q", got)
	}
}

func TestChunksTrailingEscapeAtEOF(t *testing.T) {
	// A lone '!' at EOF terminates the chunk; nothing follows.
	got := readAll(t, "tail!")
	if len(got) != 1 || got[0] != "tail" {
		t.Errorf("got %q", got)
	}
}

func TestChunksEmptyInput(t *testing.T) {
	if got := readAll(t, ""); len(got) != 0 {
		t.Errorf("got %q", got)
	}
}

func TestChunksOddBangRuns(t *testing.T) {
	// The doubled bangs decode to literals; the fifth one terminates.
	got := readAll(t, "a!!b!!!c!")
	if len(got) != 2 || got[0] != "a!b!" || got[1] != "c" {
		t.Errorf("got %q", got)
	}
}

func TestChunksWhitespaceOnlyChunk(t *testing.T) {
	got := readAll(t, "a! !b!")
	if len(got) != 3 || got[1] != " " {
		t.Errorf("got %q", got)
	}
}

// TestChunksRoundTrip encodes values with !!-escaping and !-termination
// and checks they decode back unchanged.
func TestChunksRoundTrip(t *testing.T) {
	values := []string{
		"plain",
		"with ! bang",
		"!!leading",
		"trailing!",
		"",
		"multi\nline\nchunk",
		"unicode: émoji 🐭",
	}

	var encoded strings.Builder
	for _, v := range values {
		encoded.WriteString(strings.ReplaceAll(v, "!", "!!"))
		encoded.WriteByte('!')
	}

	got := readAll(t, encoded.String())
	if len(got) != len(values) {
		t.Fatalf("decoded %d chunks, want %d: %q", len(got), len(values), got)
	}
	for i, v := range values {
		if got[i] != v {
			t.Errorf("chunk %d = %q, want %q", i, got[i], v)
		}
	}
}
