package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Review exposes the query surface over the plain pool, for single-statement
// reads that need no transaction.
func (s *PostgresStore) Review() *ReviewTx {
	return NewReviewTx(s.db)
}

// ReviewTxHandle binds the query surface to an open transaction.
type ReviewTxHandle struct {
	*ReviewTx
	tx *sql.Tx
}

func (h *ReviewTxHandle) Commit() error   { return h.tx.Commit() }
func (h *ReviewTxHandle) Rollback() error { return h.tx.Rollback() }

func (s *PostgresStore) BeginReviewTx(ctx context.Context) (*ReviewTxHandle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin review tx: %w", err)
	}
	return &ReviewTxHandle{ReviewTx: NewReviewTx(tx), tx: tx}, nil
}

// --- users ---

func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, admin, created_at
		FROM users
		WHERE username=$1
	`, username).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Admin, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) UserByID(ctx context.Context, userID int64) (User, error) {
	return s.Review().UserByID(ctx, userID)
}

// UsernamesByIDs resolves actor display names for history views.
func (s *PostgresStore) UsernamesByIDs(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	if len(userIDs) == 0 {
		return map[int64]string{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, username FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list usernames: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usernames: %w", err)
	}
	return names, nil
}

// DeckByHumanHash looks up a deck by its public hash.
func (s *PostgresStore) DeckByHumanHash(ctx context.Context, humanHash string) (Deck, error) {
	var d Deck
	err := s.db.QueryRowContext(ctx, `
		SELECT id, parent, owner, name, full_path, human_hash, private, last_update
		FROM decks
		WHERE human_hash=$1
	`, humanHash).Scan(&d.ID, &d.Parent, &d.Owner, &d.Name, &d.FullPath, &d.HumanHash, &d.Private, &d.LastUpdate)
	if err != nil {
		return Deck{}, err
	}
	return d, nil
}

// --- history reads ---

const eventColumns = `id, note, version, kind, actor_user, commit, approved, old_value, new_value, created_at`

func scanEvent(row interface{ Scan(...any) error }) (NoteEvent, error) {
	var e NoteEvent
	err := row.Scan(&e.ID, &e.Note, &e.Version, &e.Kind, &e.ActorUser, &e.Commit, &e.Approved, &e.OldValue, &e.NewValue, &e.CreatedAt)
	return e, err
}

// NoteEvents returns the newest events first, capped by limit.
func (s *PostgresStore) NoteEvents(ctx context.Context, noteID int64, limit int) ([]NoteEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM note_events
		WHERE note=$1
		ORDER BY version DESC
		LIMIT $2
	`, noteID, limit)
}

// EventsForCommit returns a commit's events grouped by note, in version order.
func (s *PostgresStore) EventsForCommit(ctx context.Context, commitID int64) ([]NoteEvent, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM note_events
		WHERE commit=$1
		ORDER BY note ASC, version ASC
	`, commitID)
}

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]NoteEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	items := make([]NoteEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}

// FieldNamesForNote maps notetype positions to field names for one note.
func (s *PostgresStore) FieldNamesForNote(ctx context.Context, noteID int64) (map[uint32]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT nf.position, nf.name
		FROM notetype_fields nf
		JOIN notes n ON n.notetype = nf.notetype
		WHERE n.id=$1
		ORDER BY nf.position ASC
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list field names: %w", err)
	}
	defer rows.Close()

	names := make(map[uint32]string)
	for rows.Next() {
		var position uint32
		var name string
		if err := rows.Scan(&position, &name); err != nil {
			return nil, fmt.Errorf("scan field name: %w", err)
		}
		names[position] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate field names: %w", err)
	}
	return names, nil
}

// --- media references ---

// ReviewedFieldContents feeds the media reference extractor.
func (s *PostgresStore) ReviewedFieldContents(ctx context.Context, noteID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content FROM fields WHERE note=$1 AND reviewed ORDER BY position ASC
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list reviewed contents: %w", err)
	}
	defer rows.Close()

	items := make([]string, 0)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contents: %w", err)
	}
	return items, nil
}

// ReplaceMediaReferences rewrites a note's media_references rows in one
// transaction, as the refresh worker's unit of work.
func (s *PostgresStore) ReplaceMediaReferences(ctx context.Context, noteID int64, fileNames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin media refresh tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM media_references WHERE note=$1`, noteID); err != nil {
		return fmt.Errorf("clear media references: %w", err)
	}
	for _, name := range fileNames {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO media_references (note, file_name)
			VALUES ($1, $2)
			ON CONFLICT (note, file_name) DO NOTHING
		`, noteID, name); err != nil {
			return fmt.Errorf("insert media reference: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit media refresh: %w", err)
	}
	return nil
}

func (s *PostgresStore) MediaReferences(ctx context.Context, noteID int64) ([]MediaReference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT note, file_name, media_id FROM media_references WHERE note=$1 ORDER BY file_name ASC
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list media references: %w", err)
	}
	defer rows.Close()

	items := make([]MediaReference, 0)
	for rows.Next() {
		var m MediaReference
		if err := rows.Scan(&m.Note, &m.FileName, &m.MediaID); err != nil {
			return nil, fmt.Errorf("scan media reference: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media references: %w", err)
	}
	return items, nil
}

// --- export reads ---

// SheetNote is one printable card for the deck export.
type SheetNote struct {
	NoteID int64
	GUID   string
	Fields []string
	Tags   []string
}

// ReviewedSheetNotes loads a deck's reviewed notes with their reviewed
// fields in position order and reviewed tag additions.
func (s *PostgresStore) ReviewedSheetNotes(ctx context.Context, deckID int64) ([]SheetNote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guid FROM notes
		WHERE deck=$1 AND reviewed AND NOT deleted
		ORDER BY id ASC
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("list sheet notes: %w", err)
	}
	defer rows.Close()

	items := make([]SheetNote, 0)
	for rows.Next() {
		var n SheetNote
		if err := rows.Scan(&n.NoteID, &n.GUID); err != nil {
			return nil, fmt.Errorf("scan sheet note: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sheet notes: %w", err)
	}

	review := s.Review()
	for i := range items {
		contents, err := s.ReviewedFieldContents(ctx, items[i].NoteID)
		if err != nil {
			return nil, err
		}
		items[i].Fields = contents
		tags, err := review.ReviewedTagContents(ctx, items[i].NoteID)
		if err != nil {
			return nil, err
		}
		items[i].Tags = tags
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
