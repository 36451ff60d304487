package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ankicollab/api/internal/store"
)

// approveField accepts one field suggestion. An empty suggestion acts as a
// removal of the reviewed row at the same position; a non-empty one replaces
// it. Position 0 of a reviewed note must stay non-empty throughout.
func approveField(ctx context.Context, tx Store, actor, fieldID int64, bumps *bumpList) error {
	f, err := tx.FieldByID(ctx, fieldID)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextFieldApprove)
	}
	if err != nil {
		return fmt.Errorf("load field suggestion: %w", err)
	}
	if f.Reviewed {
		// Already accepted; a repeated approve must not change anything.
		return nil
	}
	note, err := loadNote(ctx, tx, f.Note, ContextFieldApprove)
	if err != nil {
		return err
	}

	existing, err := tx.ReviewedFieldAt(ctx, note.ID, f.Position)
	if err != nil {
		return err
	}

	isEmpty := trimmed(f.Content) == ""
	if isEmpty {
		if f.Position == 0 {
			return ErrInvalidNote
		}
		if note.Reviewed {
			ok, err := tx.HasNonEmptyReviewedFieldAtZero(ctx, note.ID, 0)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidNote
			}
		} else {
			total, err := tx.CountFieldsForNote(ctx, note.ID)
			if err != nil {
				return err
			}
			doomed, err := tx.CountReviewedFieldsAt(ctx, note.ID, f.Position)
			if err != nil {
				return err
			}
			if total-doomed-1 < 1 {
				return ErrInvalidNote
			}
		}
		if err := tx.DeleteReviewedFieldsAt(ctx, note.ID, f.Position, f.ID); err != nil {
			return err
		}
		if err := tx.DeleteField(ctx, f.ID); err != nil {
			return err
		}
		if existing != nil {
			old, err := marshalPayload(fieldPayload{Position: f.Position, Content: existing.Content, Reviewed: boolPtr(true)})
			if err != nil {
				return err
			}
			if err := logApproved(ctx, tx, note.ID, store.EventFieldRemoved, actor, f.Commit, old, nil); err != nil {
				return err
			}
		} else {
			denied, err := marshalPayload(fieldPayload{Position: f.Position, Content: f.Content})
			if err != nil {
				return err
			}
			if err := logDenied(ctx, tx, note.ID, store.EventSuggestionDenied, actor, f.Commit, nil, denied); err != nil {
				return err
			}
		}
	} else {
		if existing != nil {
			if err := tx.DeleteReviewedFieldsAt(ctx, note.ID, f.Position, f.ID); err != nil {
				return err
			}
		}
		if err := tx.PromoteField(ctx, f.ID); err != nil {
			return err
		}
		newVal, err := marshalPayload(fieldPayload{Position: f.Position, Content: f.Content, Reviewed: boolPtr(true)})
		if err != nil {
			return err
		}
		if existing != nil {
			old, err := marshalPayload(fieldPayload{Position: f.Position, Content: existing.Content, Reviewed: boolPtr(true)})
			if err != nil {
				return err
			}
			if err := logApproved(ctx, tx, note.ID, store.EventFieldUpdated, actor, f.Commit, old, newVal); err != nil {
				return err
			}
		} else {
			if err := logApproved(ctx, tx, note.ID, store.EventFieldAdded, actor, f.Commit, nil, newVal); err != nil {
				return err
			}
		}
	}

	if note.Reviewed {
		ok, err := tx.HasNonEmptyReviewedFieldAtZero(ctx, note.ID, 0)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidNote
		}
	}

	bumps.add(note.ID)
	subs, err := tx.SubscriberInheritances(ctx, note.ID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		bumps.add(sub.SubscriberNote)
	}
	return nil
}

// denyField drops one field suggestion without touching reviewed rows.
func denyField(ctx context.Context, tx Store, actor, fieldID int64) error {
	f, err := tx.FieldByID(ctx, fieldID)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextFieldDeny)
	}
	if err != nil {
		return fmt.Errorf("load field suggestion: %w", err)
	}
	note, err := loadNote(ctx, tx, f.Note, ContextFieldDeny)
	if err != nil {
		return err
	}

	if note.Reviewed {
		ok, err := tx.HasNonEmptyReviewedFieldAtZero(ctx, note.ID, f.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidNote
		}
	} else {
		total, err := tx.CountFieldsForNote(ctx, note.ID)
		if err != nil {
			return err
		}
		if total < 2 {
			return ErrInvalidNote
		}
	}

	current, err := tx.ReviewedFieldAt(ctx, note.ID, f.Position)
	if err != nil {
		return err
	}
	if err := tx.DeleteField(ctx, f.ID); err != nil {
		return err
	}

	payload := fieldDeniedPayload{DeniedContent: f.Content}
	if current != nil {
		payload.CurrentContent = current.Content
		payload.HadCurrent = true
	}
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	return logDenied(ctx, tx, note.ID, store.EventFieldChangeDenied, actor, f.Commit, nil, raw)
}

func logApproved(ctx context.Context, tx Store, noteID int64, kind store.EventKind, actor int64, commit *int64, old, newVal []byte) error {
	return logWith(ctx, tx, noteID, kind, actor, commit, boolPtr(true), old, newVal)
}

func logDenied(ctx context.Context, tx Store, noteID int64, kind store.EventKind, actor int64, commit *int64, old, newVal []byte) error {
	return logWith(ctx, tx, noteID, kind, actor, commit, boolPtr(false), old, newVal)
}

func logWith(ctx context.Context, tx Store, noteID int64, kind store.EventKind, actor int64, commit *int64, approved *bool, old, newVal []byte) error {
	_, err := tx.LogNoteEvent(ctx, store.NoteEventInput{
		Note:      noteID,
		Kind:      kind,
		ActorUser: &actor,
		Commit:    commit,
		Approved:  approved,
		OldValue:  old,
		NewValue:  newVal,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextLogEvent)
	}
	return err
}
