// Package search finds tasks on a board by title or description. Meilisearch
// is the primary engine when configured; Postgres ILIKE matching is the
// fallback. Both return task ids, which the caller hydrates from the store.
package search

// TaskRecord is the data indexed for a task.
type TaskRecord struct {
	ID          string `json:"id"`
	BoardID     string `json:"boardId"`
	ListID      string `json:"listId"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Query describes one board-scoped search request.
type Query struct {
	BoardID string
	Text    string
	Limit   int
	Offset  int
}

// Searcher executes a search and returns matching task ids plus the total
// number of matches.
type Searcher interface {
	Search(q Query) ([]string, int, error)
	Healthy() bool
}
