package usecase_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"monograph-rag/internal/usecase"
	"monograph-rag/internal/usecase/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assemblerCandidates() []retrieval.Candidate {
	return []retrieval.Candidate{
		{
			GroupName:    "Aspirin",
			SectionName:  "Dosage",
			Content:      "Typical adult dose is 325 mg.",
			RelatedTerms: []string{"analgesic", "NSAID"},
		},
		{
			GroupName:    "Ibuprofen",
			SectionName:  "Warnings",
			Content:      "May cause gastric irritation.",
			RelatedTerms: nil,
		},
	}
}

func TestAssemble_FormatsNumberedSourceBlocks(t *testing.T) {
	assembler := usecase.NewContextAssembler(8000)
	context, truncated := assembler.Assemble(assemblerCandidates())

	assert.False(t, truncated)
	assert.Contains(t, context, "[Source 1]\nSubstance: Aspirin\nSection: Dosage")
	assert.Contains(t, context, "[Source 2]\nSubstance: Ibuprofen\nSection: Warnings")
	assert.Contains(t, context, "Related Medical Terms: analgesic, NSAID")
	assert.NotContains(t, context, usecase.TruncationMarker)
}

func TestAssemble_TruncatesAtBudget(t *testing.T) {
	candidates := []retrieval.Candidate{{
		GroupName:   "Aspirin",
		SectionName: "Dosage",
		Content:     strings.Repeat("very long content ", 100),
	}}

	assembler := usecase.NewContextAssembler(200)
	context, truncated := assembler.Assemble(candidates)

	assert.True(t, truncated)
	assert.True(t, strings.HasSuffix(context, usecase.TruncationMarker))
	assert.Len(t, context, 200+len(usecase.TruncationMarker))
}

func TestAssemble_TruncationKeepsValidUTF8(t *testing.T) {
	candidates := []retrieval.Candidate{{
		GroupName:   "Levothyroxine",
		SectionName: "Dosage",
		Content:     strings.Repeat("μg dose ", 100),
	}}

	// Sweep budgets so some cut positions land mid-rune.
	for budget := 150; budget < 170; budget++ {
		assembler := usecase.NewContextAssembler(budget)
		context, truncated := assembler.Assemble(candidates)

		assert.True(t, truncated)
		assert.True(t, utf8.ValidString(context), "budget %d produced invalid UTF-8", budget)
		assert.True(t, strings.HasSuffix(context, usecase.TruncationMarker))
		assert.LessOrEqual(t, len(context), budget+len(usecase.TruncationMarker))
	}
}

func TestAssemble_CapsRelatedTerms(t *testing.T) {
	terms := make([]string, 30)
	for i := range terms {
		terms[i] = "term"
	}
	candidates := []retrieval.Candidate{{
		GroupName:    "Aspirin",
		SectionName:  "Dosage",
		Content:      "x",
		RelatedTerms: terms,
	}}

	assembler := usecase.NewContextAssembler(8000)
	context, _ := assembler.Assemble(candidates)

	line := ""
	for _, l := range strings.Split(context, "\n") {
		if strings.HasPrefix(l, "Related Medical Terms:") {
			line = l
		}
	}
	require.NotEmpty(t, line)
	assert.Equal(t, 15, strings.Count(line, "term"))
}

func TestAssemble_IsDeterministic(t *testing.T) {
	assembler := usecase.NewContextAssembler(8000)
	first, _ := assembler.Assemble(assemblerCandidates())
	second, _ := assembler.Assemble(assemblerCandidates())
	assert.Equal(t, first, second)
}
