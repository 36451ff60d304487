package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const fieldColumns = `id, note, position, content, reviewed, commit, creator_ip`

func scanField(row interface{ Scan(...any) error }) (Field, error) {
	var f Field
	err := row.Scan(&f.ID, &f.Note, &f.Position, &f.Content, &f.Reviewed, &f.Commit, &f.CreatorIP)
	return f, err
}

func (t *ReviewTx) FieldByID(ctx context.Context, fieldID int64) (Field, error) {
	return scanField(t.q.QueryRowContext(ctx, `
		SELECT `+fieldColumns+` FROM fields WHERE id=$1
	`, fieldID))
}

func (t *ReviewTx) FieldsForNote(ctx context.Context, noteID int64) ([]Field, error) {
	return t.queryFields(ctx, `
		SELECT `+fieldColumns+` FROM fields WHERE note=$1 ORDER BY position ASC, id ASC
	`, noteID)
}

// ReviewedFieldAt returns the active row at a position, or nil when the
// position is vacant.
func (t *ReviewTx) ReviewedFieldAt(ctx context.Context, noteID int64, position uint32) (*Field, error) {
	f, err := scanField(t.q.QueryRowContext(ctx, `
		SELECT `+fieldColumns+` FROM fields
		WHERE note=$1 AND position=$2 AND reviewed
		ORDER BY id ASC
		LIMIT 1
	`, noteID, position))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reviewed field at %d: %w", position, err)
	}
	return &f, nil
}

func (t *ReviewTx) CountFieldsForNote(ctx context.Context, noteID int64) (int, error) {
	var count int
	err := t.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM fields WHERE note=$1`, noteID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count fields: %w", err)
	}
	return count, nil
}

func (t *ReviewTx) CountReviewedFieldsAt(ctx context.Context, noteID int64, position uint32) (int, error) {
	var count int
	err := t.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM fields WHERE note=$1 AND position=$2 AND reviewed
	`, noteID, position).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reviewed fields: %w", err)
	}
	return count, nil
}

// HasNonEmptyReviewedFieldAtZero checks invariant 1. excludeFieldID skips a
// row about to be removed; pass 0 to consider every row.
func (t *ReviewTx) HasNonEmptyReviewedFieldAtZero(ctx context.Context, noteID, excludeFieldID int64) (bool, error) {
	var exists bool
	err := t.q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM fields
			WHERE note=$1 AND position=0 AND reviewed
			  AND TRIM(content) <> ''
			  AND ($2 = 0 OR id <> $2)
		)
	`, noteID, excludeFieldID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check position zero: %w", err)
	}
	return exists, nil
}

func (t *ReviewTx) DeleteField(ctx context.Context, fieldID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM fields WHERE id=$1`, fieldID)
	if err != nil {
		return fmt.Errorf("delete field: %w", err)
	}
	return nil
}

func (t *ReviewTx) DeleteReviewedFieldsAt(ctx context.Context, noteID int64, position uint32, exceptID int64) error {
	_, err := t.q.ExecContext(ctx, `
		DELETE FROM fields WHERE note=$1 AND position=$2 AND reviewed AND id <> $3
	`, noteID, position, exceptID)
	if err != nil {
		return fmt.Errorf("delete reviewed fields: %w", err)
	}
	return nil
}

func (t *ReviewTx) DeleteUnreviewedFieldsForNote(ctx context.Context, noteID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM fields WHERE note=$1 AND NOT reviewed`, noteID)
	if err != nil {
		return fmt.Errorf("delete unreviewed fields: %w", err)
	}
	return nil
}

func (t *ReviewTx) PromoteField(ctx context.Context, fieldID int64) error {
	_, err := t.q.ExecContext(ctx, `UPDATE fields SET reviewed=TRUE, commit=NULL WHERE id=$1`, fieldID)
	if err != nil {
		return fmt.Errorf("promote field: %w", err)
	}
	return nil
}

// PromoteFieldsForNote flips every remaining field row of a note to
// reviewed, as approve_card does outside of a bulk merge.
func (t *ReviewTx) PromoteFieldsForNote(ctx context.Context, noteID int64) error {
	_, err := t.q.ExecContext(ctx, `
		UPDATE fields SET reviewed=TRUE, commit=NULL WHERE note=$1 AND NOT reviewed
	`, noteID)
	if err != nil {
		return fmt.Errorf("promote note fields: %w", err)
	}
	return nil
}

func (t *ReviewTx) UpdateFieldContent(ctx context.Context, fieldID int64, content string) error {
	_, err := t.q.ExecContext(ctx, `UPDATE fields SET content=$2 WHERE id=$1`, fieldID, content)
	if err != nil {
		return fmt.Errorf("update field content: %w", err)
	}
	return nil
}

func (t *ReviewTx) InsertFieldSuggestion(ctx context.Context, f Field) (int64, error) {
	var id int64
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO fields (note, position, content, reviewed, commit, creator_ip)
		VALUES ($1, $2, $3, FALSE, $4, $5)
		RETURNING id
	`, f.Note, f.Position, f.Content, f.Commit, f.CreatorIP).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert field suggestion: %w", err)
	}
	return id, nil
}

// FieldSuggestionAt returns the unreviewed row at a position inside one
// commit, or nil.
func (t *ReviewTx) FieldSuggestionAt(ctx context.Context, noteID int64, position uint32, commitID int64) (*Field, error) {
	f, err := scanField(t.q.QueryRowContext(ctx, `
		SELECT `+fieldColumns+` FROM fields
		WHERE note=$1 AND position=$2 AND NOT reviewed AND commit=$3
		LIMIT 1
	`, noteID, position, commitID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("field suggestion at %d: %w", position, err)
	}
	return &f, nil
}

func (t *ReviewTx) FieldSuggestionsForNoteInCommit(ctx context.Context, noteID, commitID int64) ([]Field, error) {
	return t.queryFields(ctx, `
		SELECT `+fieldColumns+` FROM fields
		WHERE note=$1 AND NOT reviewed AND commit=$2
		ORDER BY position ASC, id ASC
	`, noteID, commitID)
}

func (t *ReviewTx) UnreviewedFieldsForCommit(ctx context.Context, commitID int64) ([]Field, error) {
	return t.queryFields(ctx, `
		SELECT `+fieldColumns+` FROM fields
		WHERE commit=$1 AND NOT reviewed
		ORDER BY note ASC, position ASC, id ASC
	`, commitID)
}

// HasSuggestionAtOtherCommit reports whether another commit also proposes a
// change at this position.
func (t *ReviewTx) HasSuggestionAtOtherCommit(ctx context.Context, noteID int64, position uint32, commitID int64) (bool, error) {
	var exists bool
	err := t.q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM fields
			WHERE note=$1 AND position=$2 AND NOT reviewed AND commit IS DISTINCT FROM $3
		)
	`, noteID, position, commitID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check other suggestions: %w", err)
	}
	return exists, nil
}

func (t *ReviewTx) queryFields(ctx context.Context, query string, args ...any) ([]Field, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()

	items := make([]Field, 0)
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fields: %w", err)
	}
	return items, nil
}
