package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across decks and reviewed notes using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultDeck {
		deckWhere := fmt.Sprintf("NOT d.private AND to_tsvector('english', d.name || ' ' || d.full_path) @@ %s", tsQuery)
		if q.FilterDeckHash != "" {
			deckWhere += fmt.Sprintf(" AND d.human_hash = $%d", argN)
			args = append(args, q.FilterDeckHash)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'deck'::text AS type, d.id::text, d.name AS title,
				ts_headline('english', d.full_path, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				d.human_hash AS deck_hash,
				ts_rank(to_tsvector('english', d.name || ' ' || d.full_path), %s) AS rank
			FROM decks d
			WHERE %s`, tsQuery, tsQuery, deckWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultNote {
		noteWhere := fmt.Sprintf("n.reviewed AND NOT n.deleted AND NOT d.private AND to_tsvector('english', body.text) @@ %s", tsQuery)
		if q.FilterDeckHash != "" {
			noteWhere += fmt.Sprintf(" AND d.human_hash = $%d", argN)
			args = append(args, q.FilterDeckHash)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'note'::text AS type, n.id::text, n.guid AS title,
				ts_headline('english', body.text, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				d.human_hash AS deck_hash,
				ts_rank(to_tsvector('english', body.text), %s) AS rank
			FROM notes n
			JOIN decks d ON d.id = n.deck
			JOIN LATERAL (
				SELECT coalesce(string_agg(f.content, ' ' ORDER BY f.position), '') AS text
				FROM fields f
				WHERE f.note = n.id AND f.reviewed
			) body ON TRUE
			WHERE %s`, tsQuery, tsQuery, noteWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, deck_hash
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.DeckHash); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DeckRecord, []NoteRecord, error) {
	deckRows, err := p.db.QueryContext(ctx, `
		SELECT id::text, name, full_path, human_hash
		FROM decks
		WHERE NOT private
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load decks: %w", err)
	}
	defer deckRows.Close()

	decks := make([]DeckRecord, 0)
	for deckRows.Next() {
		var d DeckRecord
		if err := deckRows.Scan(&d.ID, &d.Name, &d.FullPath, &d.HumanHash); err != nil {
			return nil, nil, fmt.Errorf("scan deck: %w", err)
		}
		decks = append(decks, d)
	}
	if err := deckRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate decks: %w", err)
	}

	noteRows, err := p.db.QueryContext(ctx, `
		SELECT n.id::text, n.guid, d.human_hash,
			coalesce((
				SELECT string_agg(f.content, ' ' ORDER BY f.position)
				FROM fields f WHERE f.note = n.id AND f.reviewed
			), '') AS body,
			coalesce((
				SELECT array_agg(t.content ORDER BY t.content)
				FROM tags t WHERE t.note = n.id AND t.reviewed AND t.action
			), '{}') AS tags
		FROM notes n
		JOIN decks d ON d.id = n.deck
		WHERE n.reviewed AND NOT n.deleted AND NOT d.private
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load notes: %w", err)
	}
	defer noteRows.Close()

	notes := make([]NoteRecord, 0)
	for noteRows.Next() {
		var n NoteRecord
		var tags []byte
		if err := noteRows.Scan(&n.ID, &n.GUID, &n.DeckHash, &n.Body, &tags); err != nil {
			return nil, nil, fmt.Errorf("scan note: %w", err)
		}
		n.Tags = parseTextArray(string(tags))
		notes = append(notes, n)
	}
	if err := noteRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate notes: %w", err)
	}

	return decks, notes, nil
}

// parseTextArray decodes a simple Postgres text[] literal. Tag content never
// contains braces, commas or quotes, so the simple split is enough.
func parseTextArray(raw string) []string {
	trimmed := strings.Trim(raw, "{}")
	if trimmed == "" {
		return []string{}
	}
	parts := strings.Split(trimmed, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.Trim(part, `"`))
	}
	return out
}
