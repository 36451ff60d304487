package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ReviewTx is the query surface handed to the suggestion and merge engines.
// It is bound to a single connection: pass the enclosing *sql.Tx so every
// mutation of one logical operation shares a transaction.
type ReviewTx struct {
	q Querier
}

func NewReviewTx(q Querier) *ReviewTx {
	return &ReviewTx{q: q}
}

// --- notes ---

func (t *ReviewTx) NoteByID(ctx context.Context, noteID int64) (Note, error) {
	var n Note
	err := t.q.QueryRowContext(ctx, `
		SELECT id, guid, deck, notetype, reviewed, deleted, version, last_update
		FROM notes
		WHERE id=$1
	`, noteID).Scan(&n.ID, &n.GUID, &n.Deck, &n.Notetype, &n.Reviewed, &n.Deleted, &n.Version, &n.LastUpdate)
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

func (t *ReviewTx) SetNoteDeck(ctx context.Context, noteID, deckID int64) error {
	_, err := t.q.ExecContext(ctx, `UPDATE notes SET deck=$2 WHERE id=$1`, noteID, deckID)
	if err != nil {
		return fmt.Errorf("set note deck: %w", err)
	}
	return nil
}

func (t *ReviewTx) SetNoteDeleted(ctx context.Context, noteID int64) error {
	_, err := t.q.ExecContext(ctx, `UPDATE notes SET deleted=TRUE WHERE id=$1`, noteID)
	if err != nil {
		return fmt.Errorf("set note deleted: %w", err)
	}
	return nil
}

func (t *ReviewTx) SetNoteReviewed(ctx context.Context, noteID int64) error {
	_, err := t.q.ExecContext(ctx, `UPDATE notes SET reviewed=TRUE WHERE id=$1`, noteID)
	if err != nil {
		return fmt.Errorf("set note reviewed: %w", err)
	}
	return nil
}

// DeleteNote physically removes an unreviewed note; the schema cascades to
// its fields, tags, suggestions, media references, events and inheritance.
func (t *ReviewTx) DeleteNote(ctx context.Context, noteID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, noteID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// --- decks / notetypes / commits ---

func (t *ReviewTx) DeckByID(ctx context.Context, deckID int64) (Deck, error) {
	var d Deck
	err := t.q.QueryRowContext(ctx, `
		SELECT id, parent, owner, name, full_path, human_hash, private, last_update
		FROM decks
		WHERE id=$1
	`, deckID).Scan(&d.ID, &d.Parent, &d.Owner, &d.Name, &d.FullPath, &d.HumanHash, &d.Private, &d.LastUpdate)
	if err != nil {
		return Deck{}, err
	}
	return d, nil
}

func (t *ReviewTx) NotetypeFields(ctx context.Context, notetypeID int64) ([]NotetypeField, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, notetype, position, name, protected
		FROM notetype_fields
		WHERE notetype=$1
		ORDER BY position ASC
	`, notetypeID)
	if err != nil {
		return nil, fmt.Errorf("list notetype fields: %w", err)
	}
	defer rows.Close()

	items := make([]NotetypeField, 0)
	for rows.Next() {
		var item NotetypeField
		if err := rows.Scan(&item.ID, &item.Notetype, &item.Position, &item.Name, &item.Protected); err != nil {
			return nil, fmt.Errorf("scan notetype field: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notetype fields: %w", err)
	}
	return items, nil
}

func (t *ReviewTx) CommitByID(ctx context.Context, commitID int64) (Commit, error) {
	var c Commit
	err := t.q.QueryRowContext(ctx, `
		SELECT commit_id, deck, rationale, timestamp, user_id
		FROM commits
		WHERE commit_id=$1
	`, commitID).Scan(&c.CommitID, &c.Deck, &c.Rationale, &c.Timestamp, &c.UserID)
	if err != nil {
		return Commit{}, err
	}
	return c, nil
}

// --- event log ---

// LogNoteEvent atomically allocates the note's next version and appends one
// history row. The missing-note case surfaces as sql.ErrNoRows so the engine
// can attach its operation context.
func (t *ReviewTx) LogNoteEvent(ctx context.Context, in NoteEventInput) (int64, error) {
	var version int64
	err := t.q.QueryRowContext(ctx, `
		UPDATE notes SET version = version + 1 WHERE id=$1 RETURNING version
	`, in.Note).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("bump note version: %w", err)
	}

	var eventID int64
	err = t.q.QueryRowContext(ctx, `
		INSERT INTO note_events (note, version, kind, actor_user, commit, approved, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, in.Note, version, in.Kind, in.ActorUser, in.Commit, in.Approved, nullableJSON(in.OldValue), nullableJSON(in.NewValue)).Scan(&eventID)
	if err != nil {
		return 0, fmt.Errorf("insert note event: %w", err)
	}
	return eventID, nil
}

func (t *ReviewTx) NoteHasEvents(ctx context.Context, noteID int64) (bool, error) {
	var exists bool
	err := t.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM note_events WHERE note=$1)`, noteID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check note events: %w", err)
	}
	return exists, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func decodeJSONArray[T any](raw []byte, out *[]T) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, out)
}
