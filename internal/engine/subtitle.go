package engine

import "strings"

// Chunker splits display text into short subtitle chunks sized for a
// natural reading pace. Splitting is deterministic: the same input
// always yields the same chunk list.
type Chunker struct {
	// MaxSentenceWords is the longest sentence kept as one chunk.
	MaxSentenceWords int
	// MaxClauseWords is the longest clause kept as one chunk.
	MaxClauseWords int
	// HardSplitWords is the target length when a fragment has no
	// usable punctuation.
	HardSplitWords int
}

// DefaultChunker returns a chunker with reading-pace defaults.
func DefaultChunker() Chunker {
	return Chunker{
		MaxSentenceWords: 10,
		MaxClauseWords:   12,
		HardSplitWords:   8,
	}
}

// connectives are preferred break points when hard-splitting.
var connectives = map[string]bool{
	"and": true, "but": true, "or": true, "so": true,
	"because": true, "then": true, "that": true,
	"which": true, "while": true, "when": true,
}

// Chunk splits text into ordered subtitle chunks. Every word of the
// input appears in exactly one chunk, in order; empty input yields an
// empty list.
func (c Chunker) Chunk(text string) []string {
	var chunks []string

	for _, sentence := range splitKeeping(text, ".!?") {
		words := strings.Fields(sentence)
		if len(words) == 0 {
			continue
		}
		if len(words) <= c.MaxSentenceWords {
			chunks = append(chunks, strings.Join(words, " "))
			continue
		}

		for _, clause := range splitKeeping(sentence, ",;:") {
			cw := strings.Fields(clause)
			if len(cw) == 0 {
				continue
			}
			if len(cw) <= c.MaxClauseWords {
				chunks = append(chunks, strings.Join(cw, " "))
				continue
			}
			chunks = append(chunks, c.hardSplit(cw)...)
		}
	}

	return chunks
}

// hardSplit breaks an over-long word run roughly every HardSplitWords
// words, preferring to break just after a connective near the
// boundary.
func (c Chunker) hardSplit(words []string) []string {
	var out []string
	var current []string

	for i := 0; i < len(words); i++ {
		current = append(current, words[i])
		if len(current) < c.HardSplitWords {
			continue
		}

		// Within two words past the target, break after a
		// connective; otherwise force the break.
		w := strings.ToLower(strings.Trim(words[i], ".,;:!?"))
		if connectives[w] || len(current) >= c.HardSplitWords+2 || i == len(words)-1 {
			out = append(out, strings.Join(current, " "))
			current = nil
		}
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// splitKeeping splits s after any run of the given punctuation runes,
// keeping the punctuation attached to the preceding fragment.
func splitKeeping(s, punct string) []string {
	var parts []string
	start := 0
	inRun := false

	for i, r := range s {
		if strings.ContainsRune(punct, r) || r == '…' {
			inRun = true
			continue
		}
		if inRun {
			parts = append(parts, s[start:i])
			start = i
			inRun = false
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}
