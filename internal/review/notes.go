package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"ankicollab/api/internal/store"
)

// approveMove relocates the note and clears every matching pending request.
// The event payload records deck names, matching what clients already parse.
func approveMove(ctx context.Context, tx Store, actor, noteID, targetDeck int64, commit *int64, bumps *bumpList) error {
	note, err := loadNote(ctx, tx, noteID, ContextMoveRequest)
	if err != nil {
		return err
	}
	oldDeck, err := tx.DeckByID(ctx, note.Deck)
	if err != nil {
		return fmt.Errorf("load source deck: %w", err)
	}
	newDeck, err := tx.DeckByID(ctx, targetDeck)
	if err != nil {
		return fmt.Errorf("load target deck: %w", err)
	}

	if err := tx.SetNoteDeck(ctx, note.ID, targetDeck); err != nil {
		return err
	}
	if err := tx.DeleteMoveSuggestionsMatching(ctx, note.ID, targetDeck); err != nil {
		return err
	}

	old, err := marshalPayload(moveFromPayload{From: oldDeck.Name})
	if err != nil {
		return err
	}
	newVal, err := marshalPayload(moveToPayload{To: newDeck.Name})
	if err != nil {
		return err
	}
	if err := logApproved(ctx, tx, note.ID, store.EventNoteMoved, actor, commit, old, newVal); err != nil {
		return err
	}
	bumps.add(note.ID)
	return nil
}

func denyMove(ctx context.Context, tx Store, actor, moveID int64) error {
	m, err := tx.MoveSuggestionByID(ctx, moveID)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextMoveRequest)
	}
	if err != nil {
		return fmt.Errorf("load move suggestion: %w", err)
	}
	if err := tx.DeleteMoveSuggestion(ctx, m.ID); err != nil {
		return err
	}
	payload, err := marshalPayload(moveDeniedPayload{Type: "move", TargetDeck: m.TargetDeck})
	if err != nil {
		return err
	}
	return logDenied(ctx, tx, m.Note, store.EventSuggestionDenied, actor, &m.Commit, nil, payload)
}

// markDeleted soft-deletes a note and removes every pending suggestion on
// it. Repeating the call is a no-op; both return the deck's human hash.
func markDeleted(ctx context.Context, tx Store, actor, noteID int64, bulk bool, bumps *bumpList) (string, error) {
	note, err := loadNote(ctx, tx, noteID, ContextMarkDeleted)
	if err != nil {
		return "", err
	}
	deck, err := tx.DeckByID(ctx, note.Deck)
	if err != nil {
		return "", fmt.Errorf("load deck: %w", err)
	}
	if note.Deleted {
		return deck.HumanHash, nil
	}

	if err := tx.SetNoteDeleted(ctx, note.ID); err != nil {
		return "", err
	}
	if err := tx.DeleteUnreviewedFieldsForNote(ctx, note.ID); err != nil {
		return "", err
	}
	if err := tx.DeleteUnreviewedTagsForNote(ctx, note.ID); err != nil {
		return "", err
	}
	if err := tx.DeleteMoveSuggestionsForNote(ctx, note.ID); err != nil {
		return "", err
	}
	if err := tx.DeleteDeletionSuggestionsForNote(ctx, note.ID); err != nil {
		return "", err
	}
	if err := logApproved(ctx, tx, note.ID, store.EventNoteDeleted, actor, nil, nil, nil); err != nil {
		return "", err
	}
	if !bulk {
		bumps.add(note.ID)
	}
	return deck.HumanHash, nil
}

// approveCard flips an unreviewed note to reviewed, promoting every
// remaining field and tag row. Field/tag suggestions on an unreviewed note
// resolve wholesale here; only the creation snapshot is logged, never
// per-suggestion events.
func approveCard(ctx context.Context, tx Store, actor, noteID int64, commit *int64) error {
	note, err := loadNote(ctx, tx, noteID, ContextApproveCard)
	if err != nil {
		return err
	}

	fields, err := tx.FieldsForNote(ctx, note.ID)
	if err != nil {
		return err
	}
	seen := make(map[uint32]bool, len(fields))
	for _, f := range fields {
		if seen[f.Position] {
			return &AmbiguousFieldsError{Note: note.ID}
		}
		seen[f.Position] = true
	}

	hasZero := false
	for _, f := range fields {
		if f.Position == 0 && trimmed(f.Content) != "" {
			hasZero = true
		}
	}
	if !hasZero {
		return ErrInvalidNote
	}

	if err := tx.PromoteFieldsForNote(ctx, note.ID); err != nil {
		return err
	}
	if err := tx.PromoteTagsForNote(ctx, note.ID); err != nil {
		return err
	}
	if err := tx.SetNoteReviewed(ctx, note.ID); err != nil {
		return err
	}

	has, err := tx.NoteHasEvents(ctx, note.ID)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	finalFields, err := tx.FieldsForNote(ctx, note.ID)
	if err != nil {
		return err
	}
	snapshot := noteCreatedPayload{Reviewed: true, Fields: make([]fieldSnapshot, 0, len(finalFields)), Tags: []string{}}
	for _, f := range finalFields {
		if f.Reviewed {
			snapshot.Fields = append(snapshot.Fields, fieldSnapshot{Position: f.Position, Content: f.Content})
		}
	}
	sort.Slice(snapshot.Fields, func(i, j int) bool { return snapshot.Fields[i].Position < snapshot.Fields[j].Position })
	tags, err := tx.ReviewedTagContents(ctx, note.ID)
	if err != nil {
		return err
	}
	snapshot.Tags = append(snapshot.Tags, tags...)

	payload, err := marshalPayload(snapshot)
	if err != nil {
		return err
	}
	return logApproved(ctx, tx, note.ID, store.EventNoteCreated, actor, commit, nil, payload)
}
