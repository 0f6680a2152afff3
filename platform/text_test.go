package platform

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkKeepsLinesTogether(t *testing.T) {
	text := strings.Repeat("0123456789\n", 10)
	parts := Chunk(text, 25)

	if len(parts) < 2 {
		t.Fatalf("Chunk returned %d parts, want several", len(parts))
	}
	for i, p := range parts {
		if len(p) > 25 {
			t.Errorf("part %d has %d bytes", i, len(p))
		}
		for _, line := range strings.Split(strings.TrimSuffix(p, "\n"), "\n") {
			if line != "0123456789" {
				t.Errorf("part %d split a line: %q", i, line)
			}
		}
	}
	if got := strings.Join(parts, ""); got != text {
		t.Errorf("rejoined parts differ from the input")
	}
}

func TestChunkCutsLongLines(t *testing.T) {
	parts := Chunk(strings.Repeat("x", 50), 20)
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3: %q", len(parts), parts)
	}
	for _, p := range parts {
		if len(p) > 20 {
			t.Errorf("part too long: %d", len(p))
		}
	}
}

func TestChunkShortText(t *testing.T) {
	parts := Chunk("hello", 100)
	if len(parts) != 1 || parts[0] != "hello\n" {
		t.Errorf("Chunk = %q", parts)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := Truncate(s, 5)
	if !utf8.ValidString(got) || len(got) > 5 {
		t.Errorf("Truncate = %q", got)
	}
	if Truncate("short", 10) != "short" {
		t.Error("short strings should be returned unchanged")
	}
}
