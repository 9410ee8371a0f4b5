package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxTasks = "taskboard_tasks"

// Meili indexes and searches tasks via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the task index. The
// caller should proceed without Meilisearch if the instance stays unhealthy;
// the background monitor reconfigures the index when it recovers.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxTasks,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxTasks, err)
	}

	index := m.client.Index(idxTasks)
	filterable := []interface{}{"boardId", "listId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxTasks, err)
	}
	searchable := []string{"title", "description"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxTasks, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search returns matching task ids within the board.
func (m *Meili) Search(q Query) ([]string, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.Index(idxTasks).Search(q.Text, &meili.SearchRequest{
		Limit:  limit,
		Offset: int64(q.Offset),
		Filter: fmt.Sprintf("boardId = %q", q.BoardID),
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if id := decodeString(hit, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, int(resp.EstimatedTotalHits), nil
}

// IndexTask upserts one task document.
func (m *Meili) IndexTask(record TaskRecord) error {
	if _, err := m.client.Index(idxTasks).AddDocuments([]TaskRecord{record}, nil); err != nil {
		return fmt.Errorf("index task %s: %w", record.ID, err)
	}
	return nil
}

// DeleteTask removes one task document.
func (m *Meili) DeleteTask(id string) error {
	if _, err := m.client.Index(idxTasks).DeleteDocument(id, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// DeleteByList removes every task document belonging to a list.
func (m *Meili) DeleteByList(listID string) error {
	if _, err := m.client.Index(idxTasks).DeleteDocumentsByFilter(fmt.Sprintf("listId = %q", listID), nil); err != nil {
		return fmt.Errorf("delete tasks for list %s: %w", listID, err)
	}
	return nil
}

// DeleteByBoard removes every task document belonging to a board.
func (m *Meili) DeleteByBoard(boardID string) error {
	if _, err := m.client.Index(idxTasks).DeleteDocumentsByFilter(fmt.Sprintf("boardId = %q", boardID), nil); err != nil {
		return fmt.Errorf("delete tasks for board %s: %w", boardID, err)
	}
	return nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
