package chunking

import "strings"

// Splitter cuts text into overlapping rune windows. When a window would end
// mid-sentence, the cut is pulled back to the last sentence boundary inside
// the window, as long as that keeps the chunk reasonably full.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = adjustToSentenceBoundary(runes, start, end, s.ChunkSize)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

// adjustToSentenceBoundary pulls end back to just after the last sentence
// terminator in the window, unless doing so would shrink the chunk below
// half of the window size.
func adjustToSentenceBoundary(runes []rune, start, end, chunkSize int) int {
	minEnd := start + chunkSize/2
	for i := end - 1; i > minEnd; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return end
}
