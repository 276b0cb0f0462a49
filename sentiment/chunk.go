package sentiment

import "unicode/utf8"

// DefaultMaxChunkSize stays under the classifier's 5000 byte request limit.
const DefaultMaxChunkSize = 4800

// Chunk splits text into contiguous pieces of at most max bytes. Cuts ignore
// word boundaries but are moved back to a rune start when possible.
func Chunk(text string, max int) []string {
	if max <= 0 {
		max = DefaultMaxChunkSize
	}
	var out []string
	for len(text) > 0 {
		if len(text) <= max {
			out = append(out, text)
			break
		}
		cut := max
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = max
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	return out
}
