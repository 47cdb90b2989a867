package domain

import "sort"

// SectionEventType classifies what happened to a section between ingests.
type SectionEventType string

const (
	SectionAdded     SectionEventType = "added"
	SectionUpdated   SectionEventType = "updated"
	SectionUnchanged SectionEventType = "unchanged"
	SectionDeleted   SectionEventType = "deleted"
)

// SectionEvent records the outcome of diffing one section.
type SectionEvent struct {
	Name string
	Type SectionEventType
}

// DiffSections compares stored section hashes against incoming sections.
// Only added and updated sections need re-embedding; deleted names must be
// removed from the index. Events follow the incoming order, with deletions
// appended in name order so the result is deterministic.
func DiffSections(stored map[string]string, incoming []SectionInput, hasher SourceHashPolicy) []SectionEvent {
	events := make([]SectionEvent, 0, len(incoming))
	seen := make(map[string]bool, len(incoming))

	for _, section := range incoming {
		seen[section.Name] = true
		oldHash, exists := stored[section.Name]
		switch {
		case !exists:
			events = append(events, SectionEvent{Name: section.Name, Type: SectionAdded})
		case oldHash != hasher.ComputeSection(section.Text):
			events = append(events, SectionEvent{Name: section.Name, Type: SectionUpdated})
		default:
			events = append(events, SectionEvent{Name: section.Name, Type: SectionUnchanged})
		}
	}

	var deleted []string
	for name := range stored {
		if !seen[name] {
			deleted = append(deleted, name)
		}
	}
	sort.Strings(deleted)
	for _, name := range deleted {
		events = append(events, SectionEvent{Name: name, Type: SectionDeleted})
	}

	return events
}
