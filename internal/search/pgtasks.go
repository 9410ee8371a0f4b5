package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgTasks implements Searcher with a Postgres ILIKE scan, used when
// Meilisearch is absent or down. Results are ordered by last update, newest
// first, matching the board's own task listing.
type PgTasks struct {
	db *sql.DB
}

func NewPgTasks(db *sql.DB) *PgTasks {
	return &PgTasks{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgTasks) Healthy() bool {
	return true
}

func (p *PgTasks) Search(q Query) ([]string, int, error) {
	return p.SearchContext(context.Background(), q)
}

func (p *PgTasks) SearchContext(ctx context.Context, q Query) ([]string, int, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	pattern := "%" + strings.TrimSpace(q.Text) + "%"

	rows, err := p.db.QueryContext(ctx, `
		SELECT t.id, COUNT(*) OVER ()
		FROM tasks t
		JOIN lists l ON l.id = t.list_id
		WHERE l.board_id = $1
			AND (t.title ILIKE $2 OR t.description ILIKE $2)
		ORDER BY t.updated_at DESC
		LIMIT $3 OFFSET $4
	`, q.BoardID, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	total := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id, &total); err != nil {
			return nil, 0, fmt.Errorf("scan search hit: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, total, rows.Err()
}
