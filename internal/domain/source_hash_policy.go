package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// SourceHashPolicy computes stable hashes over monograph content so that
// re-ingesting unchanged material is a no-op.
type SourceHashPolicy interface {
	// ComputeSection hashes a single section's text.
	ComputeSection(text string) string
	// ComputeMonograph hashes the whole monograph: name plus every section,
	// independent of section order.
	ComputeMonograph(name string, sections []SectionInput) string
}

type sourceHashPolicy struct{}

// NewSourceHashPolicy creates the default SHA-256 based policy.
func NewSourceHashPolicy() SourceHashPolicy {
	return &sourceHashPolicy{}
}

func (p *sourceHashPolicy) ComputeSection(text string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(hash[:])
}

func (p *sourceHashPolicy) ComputeMonograph(name string, sections []SectionInput) string {
	// Null byte separators avoid ambiguity between adjacent fields.
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, strings.TrimSpace(s.Name)+"\x00"+strings.TrimSpace(s.Text))
	}
	sort.Strings(parts)

	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(name)))
	for _, part := range parts {
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
