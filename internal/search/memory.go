package search

import (
	"strings"

	"conarrator/api/internal/model"
)

// StateFunc returns the current project state to scan.
type StateFunc func() model.ProjectState

// MemoryScan is the fallback searcher. It walks the live project state
// with case-insensitive substring matching, so search keeps working when
// Meilisearch is down or not configured.
type MemoryScan struct {
	state StateFunc
}

func NewMemoryScan(state StateFunc) *MemoryScan {
	return &MemoryScan{state: state}
}

// Healthy always holds; the scan needs nothing external.
func (s *MemoryScan) Healthy() bool { return true }

// Search scans messages and documents for the query text.
func (s *MemoryScan) Search(q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return []Result{}, 0, nil
	}

	state := s.state()
	var matches []Result

	if q.FilterType == "" || q.FilterType == ResultMessage {
		for _, msg := range state.Messages {
			if strings.Contains(strings.ToLower(msg.Text), needle) ||
				strings.Contains(strings.ToLower(msg.Author), needle) {
				matches = append(matches, Result{
					Type:    ResultMessage,
					ID:      msg.ID,
					Title:   firstNonBlank(msg.Author, string(msg.Role)),
					Snippet: snippetAround(msg.Text, needle),
					Author:  msg.Author,
				})
			}
		}
	}

	if q.FilterType == "" || q.FilterType == ResultDocument {
		for _, doc := range state.Documents {
			if strings.Contains(strings.ToLower(doc.Title), needle) ||
				strings.Contains(strings.ToLower(doc.Content), needle) {
				matches = append(matches, Result{
					Type:    ResultDocument,
					ID:      doc.ID,
					Title:   doc.Title,
					Snippet: snippetAround(doc.Content, needle),
				})
			}
		}
	}

	total := len(matches)

	offset := q.Offset
	if offset > total {
		offset = total
	}
	matches = matches[offset:]

	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, total, nil
}

// snippetAround trims long text to a window around the first match.
func snippetAround(text, needle string) string {
	const window = 80
	idx := strings.Index(strings.ToLower(text), needle)
	if idx < 0 {
		idx = 0
	}

	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := start + window + len(needle)
	if end > len(text) {
		end = len(text)
	}

	snippet := text[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}
