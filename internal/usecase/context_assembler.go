package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"monograph-rag/internal/usecase/retrieval"
)

const (
	// maxContextTerms caps the related terms listed per source block.
	maxContextTerms = 15
	// TruncationMarker is appended when the assembled context exceeds the
	// character budget.
	TruncationMarker = "\n...(truncated)"

	blockSeparator = "────────────────────────────────────────────────────────────────────────────────"
)

// ContextAssembler renders ranked candidates into the numbered source blocks
// the generation prompt embeds. Assembly is pure: same candidates in, same
// string out.
type ContextAssembler struct {
	maxChars int
}

// NewContextAssembler creates an assembler with the given character budget.
func NewContextAssembler(maxChars int) *ContextAssembler {
	return &ContextAssembler{maxChars: maxChars}
}

// Assemble formats the candidates as [Source i] blocks and enforces the
// character budget. The second return value reports whether truncation
// happened.
func (a *ContextAssembler) Assemble(candidates []retrieval.Candidate) (string, bool) {
	blocks := make([]string, len(candidates))
	for i, cand := range candidates {
		blocks[i] = formatSourceBlock(i+1, cand)
	}

	context := strings.Join(blocks, "\n"+blockSeparator+"\n")

	if len(context) > a.maxChars {
		// Never cut inside a multi-byte rune; the prompt must stay
		// valid UTF-8.
		cut := a.maxChars
		for cut > 0 && !utf8.RuneStart(context[cut]) {
			cut--
		}
		return context[:cut] + TruncationMarker, true
	}
	return context, false
}

func formatSourceBlock(ordinal int, cand retrieval.Candidate) string {
	terms := cand.RelatedTerms
	if len(terms) > maxContextTerms {
		terms = terms[:maxContextTerms]
	}

	return fmt.Sprintf(`[Source %d]
Substance: %s
Section: %s

Content:
%s

Related Medical Terms: %s
`, ordinal, cand.GroupName, cand.SectionName, cand.Content, strings.Join(terms, ", "))
}
