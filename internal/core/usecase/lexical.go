package usecase

import (
	"strings"
	"unicode"
)

// lexicalScore is a coarse, non-semantic ranking used only when the vector
// index is down. Weights: exact full-query substring 10, each query token
// found as a substring 3, each token found after whitespace is stripped 2,
// plus 0.1 per query character present in the chunk (letters/digits only).
func lexicalScore(query, text string) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	text = strings.ToLower(text)
	if query == "" || text == "" {
		return 0
	}

	var score float64
	if strings.Contains(text, query) {
		score += 10
	}

	condensed := stripWhitespace(text)
	for _, token := range splitAlphaNumLower(query) {
		if strings.Contains(text, token) {
			score += 3
		} else if strings.Contains(condensed, token) {
			score += 2
		}
	}

	for _, r := range query {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		if strings.ContainsRune(text, r) {
			score += 0.1
		}
	}
	return score
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
