package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to the
// Postgres scan. Indexing is fire-and-forget: the store stays the source of
// truth and a lost index write costs only search freshness.
type Service struct {
	meili *Meili
	pg    *PgTasks
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pg *PgTasks) *Service {
	return &Service{meili: meili, pg: pg}
}

// Search returns matching task ids and the total match count.
func (s *Service) Search(ctx context.Context, q Query) ([]string, int, error) {
	if s.meili != nil && s.meili.Healthy() {
		ids, total, err := s.meili.Search(q)
		if err == nil {
			return ids, total, nil
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}
	return s.pg.SearchContext(ctx, q)
}

// IndexTask upserts a task document in the background.
func (s *Service) IndexTask(record TaskRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexTask(record); err != nil {
			log.Printf("search: index task %s: %v", record.ID, err)
		}
	}()
}

// DeleteTask removes a task document in the background.
func (s *Service) DeleteTask(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTask(id); err != nil {
			log.Printf("search: delete task %s: %v", id, err)
		}
	}()
}

// DeleteByList removes a deleted list's task documents in the background.
func (s *Service) DeleteByList(listID string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteByList(listID); err != nil {
			log.Printf("search: delete list %s tasks: %v", listID, err)
		}
	}()
}

// DeleteByBoard removes a deleted board's task documents in the background.
func (s *Service) DeleteByBoard(boardID string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteByBoard(boardID); err != nil {
			log.Printf("search: delete board %s tasks: %v", boardID, err)
		}
	}()
}
