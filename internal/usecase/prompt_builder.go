package usecase

import (
	"fmt"
	"strings"
)

// groundingPreamble is the fixed system instruction. It is intentionally
// strict: the model must answer from the provided sources alone.
const groundingPreamble = `You are a medical information assistant that provides accurate, fact-based answers.

CRITICAL RULES:
1. Answer ONLY using the provided context from the knowledge base
2. If information is not in the context, say "I don't have that information in my knowledge base"
3. Never make up or infer information not explicitly stated in the context
4. Always mention the source (substance name and section) when providing information
5. If the context is insufficient, acknowledge the limitation

You are helpful but cautious. Medical accuracy is your top priority.`

// PromptBuilder renders the final generation prompt from the assembled
// context and the user question.
type PromptBuilder interface {
	Build(query, context string) string
}

// GroundedPromptBuilder produces the strict-mode prompt used for answering.
type GroundedPromptBuilder struct{}

// NewGroundedPromptBuilder creates the default prompt builder.
func NewGroundedPromptBuilder() PromptBuilder {
	return &GroundedPromptBuilder{}
}

// Build composes preamble, context, question and answer directive.
func (b *GroundedPromptBuilder) Build(query, context string) string {
	return fmt.Sprintf(`%s

%s

%s

User Question: %s

Instructions:
- Answer using ONLY the information provided in the sources above
- Mention which substance and section your answer comes from
- If the information is not in the sources, clearly state this
- Be helpful but never make up information

Answer:`, groundingPreamble, context, strings.Repeat("=", 80), query)
}
