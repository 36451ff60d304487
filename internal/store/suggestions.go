package store

import (
	"context"
	"fmt"
)

func (t *ReviewTx) MoveSuggestionByID(ctx context.Context, moveID int64) (MoveSuggestion, error) {
	var m MoveSuggestion
	err := t.q.QueryRowContext(ctx, `
		SELECT id, note, target_deck, commit FROM note_move_suggestions WHERE id=$1
	`, moveID).Scan(&m.ID, &m.Note, &m.TargetDeck, &m.Commit)
	if err != nil {
		return MoveSuggestion{}, err
	}
	return m, nil
}

func (t *ReviewTx) MoveSuggestionsForNote(ctx context.Context, noteID int64) ([]MoveSuggestion, error) {
	return t.queryMoves(ctx, `
		SELECT id, note, target_deck, commit FROM note_move_suggestions
		WHERE note=$1 ORDER BY id ASC
	`, noteID)
}

func (t *ReviewTx) MoveSuggestionsForCommit(ctx context.Context, commitID int64) ([]MoveSuggestion, error) {
	return t.queryMoves(ctx, `
		SELECT id, note, target_deck, commit FROM note_move_suggestions
		WHERE commit=$1 ORDER BY note ASC, id ASC
	`, commitID)
}

func (t *ReviewTx) DeleteMoveSuggestion(ctx context.Context, moveID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM note_move_suggestions WHERE id=$1`, moveID)
	if err != nil {
		return fmt.Errorf("delete move suggestion: %w", err)
	}
	return nil
}

// DeleteMoveSuggestionsMatching removes every pending request to move the
// note into the given deck, across commits.
func (t *ReviewTx) DeleteMoveSuggestionsMatching(ctx context.Context, noteID, targetDeck int64) error {
	_, err := t.q.ExecContext(ctx, `
		DELETE FROM note_move_suggestions WHERE note=$1 AND target_deck=$2
	`, noteID, targetDeck)
	if err != nil {
		return fmt.Errorf("delete matching move suggestions: %w", err)
	}
	return nil
}

func (t *ReviewTx) DeleteMoveSuggestionsForNote(ctx context.Context, noteID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM note_move_suggestions WHERE note=$1`, noteID)
	if err != nil {
		return fmt.Errorf("delete note move suggestions: %w", err)
	}
	return nil
}

func (t *ReviewTx) DeleteMoveSuggestionsForCommit(ctx context.Context, commitID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM note_move_suggestions WHERE commit=$1`, commitID)
	if err != nil {
		return fmt.Errorf("delete commit move suggestions: %w", err)
	}
	return nil
}

func (t *ReviewTx) queryMoves(ctx context.Context, query string, args ...any) ([]MoveSuggestion, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query move suggestions: %w", err)
	}
	defer rows.Close()

	items := make([]MoveSuggestion, 0)
	for rows.Next() {
		var m MoveSuggestion
		if err := rows.Scan(&m.ID, &m.Note, &m.TargetDeck, &m.Commit); err != nil {
			return nil, fmt.Errorf("scan move suggestion: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate move suggestions: %w", err)
	}
	return items, nil
}

// --- deletion suggestions ---

func (t *ReviewTx) DeletionSuggestionExists(ctx context.Context, noteID int64) (bool, error) {
	var exists bool
	err := t.q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM card_deletion_suggestions WHERE note=$1)
	`, noteID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check deletion suggestion: %w", err)
	}
	return exists, nil
}

func (t *ReviewTx) DeletionSuggestionsForCommit(ctx context.Context, commitID int64) ([]DeletionSuggestion, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT note, commit FROM card_deletion_suggestions
		WHERE commit=$1 ORDER BY note ASC
	`, commitID)
	if err != nil {
		return nil, fmt.Errorf("list deletion suggestions: %w", err)
	}
	defer rows.Close()

	items := make([]DeletionSuggestion, 0)
	for rows.Next() {
		var d DeletionSuggestion
		if err := rows.Scan(&d.Note, &d.Commit); err != nil {
			return nil, fmt.Errorf("scan deletion suggestion: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deletion suggestions: %w", err)
	}
	return items, nil
}

func (t *ReviewTx) DeleteDeletionSuggestionsForNote(ctx context.Context, noteID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM card_deletion_suggestions WHERE note=$1`, noteID)
	if err != nil {
		return fmt.Errorf("delete note deletion suggestions: %w", err)
	}
	return nil
}

func (t *ReviewTx) DeleteDeletionSuggestionsForCommit(ctx context.Context, commitID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM card_deletion_suggestions WHERE commit=$1`, commitID)
	if err != nil {
		return fmt.Errorf("delete commit deletion suggestions: %w", err)
	}
	return nil
}
