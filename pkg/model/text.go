package model

import "strings"

func countWords(s string) int {
	return len(strings.Fields(s))
}

// Sentences splits prose into rough sentences on terminal punctuation.
// Good enough for heuristic checks; not a linguistic tokenizer.
func Sentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(b.String())
			if s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}
