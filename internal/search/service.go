package search

import (
	"log"

	"conarrator/api/internal/model"
)

// Service is the facade that tries Meilisearch first and falls back to
// scanning the live state.
type Service struct {
	meili    *Meili
	fallback *MemoryScan
}

// NewService creates a search service. meili may be nil when
// Meilisearch is not configured.
func NewService(meili *Meili, fallback *MemoryScan) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise scans the state.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to state scan: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: state scan error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// SyncState pushes the whole project state into Meilisearch,
// fire-and-forget. Meant to be hooked to state change notifications.
func (s *Service) SyncState(state model.ProjectState) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	messages := make([]MessageRecord, 0, len(state.Messages))
	for _, msg := range state.Messages {
		messages = append(messages, MessageRecord{
			ID:     msg.ID,
			Role:   string(msg.Role),
			Author: msg.Author,
			Text:   msg.Text,
		})
	}
	documents := make([]DocumentRecord, 0, len(state.Documents))
	for _, doc := range state.Documents {
		documents = append(documents, DocumentRecord{
			ID:      doc.ID,
			Title:   doc.Title,
			Content: doc.Content,
		})
	}

	go func() {
		if err := s.meili.IndexMessages(messages); err != nil {
			log.Printf("search: index messages: %v", err)
		}
		if err := s.meili.IndexDocuments(documents); err != nil {
			log.Printf("search: index documents: %v", err)
		}
	}()
}

// RemoveDocument drops one reference document from the index,
// fire-and-forget.
func (s *Service) RemoveDocument(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDocument(id); err != nil {
			log.Printf("search: delete document %s: %v", id, err)
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
