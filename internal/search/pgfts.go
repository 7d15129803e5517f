package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFallback searches with case-insensitive substring matching in
// PostgreSQL. Used whenever Meilisearch is unconfigured, unhealthy, or the
// query is restricted to an area.
type PgFallback struct {
	db *sql.DB
}

func NewPgFallback(db *sql.DB) *PgFallback {
	return &PgFallback{db: db}
}

func (p *PgFallback) Search(ctx context.Context, q Query) ([]string, error) {
	query, args, ok := searchSQL(q)
	if !ok {
		return nil, nil
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search complaints: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan complaint id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate complaint ids: %w", err)
	}
	return ids, nil
}

// searchSQL builds the fallback query. ok is false for blank text.
func searchSQL(q Query) (query string, args []any, ok bool) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return "", nil, false
	}

	args = []any{"%" + escapeLike(text) + "%", normalizeLimit(q.Limit)}
	where := `(title ILIKE $1 OR description ILIKE $1 OR address ILIKE $1)`
	if q.Status != "" {
		args = append(args, q.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if area := strings.TrimSpace(q.AddressContains); area != "" {
		args = append(args, area)
		where += fmt.Sprintf(` AND STRPOS(LOWER(address), LOWER($%d)) > 0`, len(args))
	}

	query = `
		SELECT id
		FROM complaints
		WHERE ` + where + `
		ORDER BY (title ILIKE $1) DESC, created_at DESC
		LIMIT $2
	`
	return query, args, true
}

// LoadAllRecords reads every complaint for a full reindex.
func (p *PgFallback) LoadAllRecords(ctx context.Context) ([]ComplaintRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, address, status, EXTRACT(EPOCH FROM created_at)::bigint
		FROM complaints
	`)
	if err != nil {
		return nil, fmt.Errorf("load complaints for reindex: %w", err)
	}
	defer rows.Close()

	items := make([]ComplaintRecord, 0)
	for rows.Next() {
		var item ComplaintRecord
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.Description, &item.Address, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan complaint record: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate complaint records: %w", err)
	}
	return items, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
