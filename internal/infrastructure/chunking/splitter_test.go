package chunking

import (
	"strings"
	"testing"
)

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(100, 20)
	if got := s.Split("   "); got != nil {
		t.Fatalf("expected nil for blank text, got %v", got)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(100, 20)
	chunks := s.Split("a short document")
	if len(chunks) != 1 || chunks[0] != "a short document" {
		t.Fatalf("expected single chunk, got %v", chunks)
	}
}

func TestSplitOverlappingWindows(t *testing.T) {
	text := strings.Repeat("x", 250)
	s := NewSplitter(100, 20)

	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 100 {
		t.Fatalf("expected full first window, got %d runes", len(chunks[0]))
	}
	// step is 80, so the final window covers runes 160..250.
	if len(chunks[2]) != 90 {
		t.Fatalf("expected 90-rune tail, got %d", len(chunks[2]))
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	text := strings.Repeat("a", 70) + ". " + strings.Repeat("b", 60)
	s := NewSplitter(100, 10)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %v", chunks)
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Fatalf("expected first chunk cut at sentence boundary, got %q", chunks[0])
	}
}

func TestSplitNormalizesBadOverlap(t *testing.T) {
	s := NewSplitter(100, 150)
	if s.Overlap != 25 {
		t.Fatalf("expected overlap clamped to 25, got %d", s.Overlap)
	}
}

func TestSplitAlwaysAdvances(t *testing.T) {
	text := strings.Repeat("y", 500)
	s := NewSplitter(10, 9)
	chunks := s.Split(text)
	if len(chunks) == 0 {
		t.Fatalf("expected chunks")
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total < 500 {
		t.Fatalf("chunks must cover the whole text, covered %d of 500", total)
	}
}
