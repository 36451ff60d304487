package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ankicollab/api/internal/store"
)

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func withoutString(items []string, drop string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != drop {
			out = append(out, item)
		}
	}
	return out
}

// approveTag accepts one tag suggestion. Resolution depends on whether the
// note subscribes to a base; afterwards the change fans out to the note's
// own subscribers.
func approveTag(ctx context.Context, tx Store, actor, tagID int64, bumps *bumpList) error {
	tg, err := tx.TagByID(ctx, tagID)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextTagApprove)
	}
	if err != nil {
		return fmt.Errorf("load tag suggestion: %w", err)
	}
	if tg.Reviewed {
		return nil
	}
	note, err := loadNote(ctx, tx, tg.Note, ContextTagApprove)
	if err != nil {
		return err
	}

	inh, err := tx.InheritanceForSubscriber(ctx, note.ID)
	if err != nil {
		return err
	}

	if inh == nil {
		if err := approveTagStandalone(ctx, tx, note.ID, tg); err != nil {
			return err
		}
	} else {
		if err := approveTagSubscriber(ctx, tx, note.ID, tg, inh); err != nil {
			return err
		}
	}

	// Base fan-out: a base-side add suppresses duplicate local copies on
	// subscribers that show the tag; a base-side removal unhides it
	// everywhere so a later re-addition surfaces again.
	subs, err := tx.SubscriberInheritances(ctx, note.ID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if tg.Action {
			if !containsString(sub.RemovedBaseTags, tg.Content) {
				local, err := tx.ReviewedTagAdd(ctx, sub.SubscriberNote, tg.Content)
				if err != nil {
					return err
				}
				if local != nil {
					if err := tx.DeleteTag(ctx, local.ID); err != nil {
						return err
					}
				}
			}
		} else {
			if containsString(sub.RemovedBaseTags, tg.Content) {
				if err := tx.SetRemovedBaseTags(ctx, sub.SubscriberNote, withoutString(sub.RemovedBaseTags, tg.Content)); err != nil {
					return err
				}
			}
		}
		bumps.add(sub.SubscriberNote)
	}

	kind := store.EventTagRemoved
	if tg.Action {
		kind = store.EventTagAdded
	}
	payload, err := marshalPayload(tagPayload{Content: tg.Content, Action: tg.Action, Reviewed: boolPtr(true)})
	if err != nil {
		return err
	}
	if err := logApproved(ctx, tx, note.ID, kind, actor, tg.Commit, nil, payload); err != nil {
		return err
	}

	bumps.add(note.ID)
	return nil
}

func approveTagStandalone(ctx context.Context, tx Store, noteID int64, tg store.Tag) error {
	if tg.Action {
		existing, err := tx.ReviewedTagAdd(ctx, noteID, tg.Content)
		if err != nil {
			return err
		}
		if existing != nil {
			return tx.DeleteTag(ctx, tg.ID)
		}
		return tx.PromoteTag(ctx, tg.ID)
	}
	if err := tx.DeleteTag(ctx, tg.ID); err != nil {
		return err
	}
	return tx.DeleteReviewedTagAdds(ctx, noteID, tg.Content)
}

func approveTagSubscriber(ctx context.Context, tx Store, noteID int64, tg store.Tag, inh *store.NoteInheritance) error {
	baseTag, err := tx.ReviewedTagAdd(ctx, inh.BaseNote, tg.Content)
	if err != nil {
		return err
	}
	baseHas := baseTag != nil

	if !tg.Action {
		local, err := tx.ReviewedTagAdd(ctx, noteID, tg.Content)
		if err != nil {
			return err
		}
		if local != nil {
			if err := tx.DeleteTag(ctx, local.ID); err != nil {
				return err
			}
		}
		if baseHas && !containsString(inh.RemovedBaseTags, tg.Content) {
			hidden := append(append([]string{}, inh.RemovedBaseTags...), tg.Content)
			if err := tx.SetRemovedBaseTags(ctx, noteID, hidden); err != nil {
				return err
			}
		}
		return tx.DeleteTag(ctx, tg.ID)
	}

	if baseHas {
		if containsString(inh.RemovedBaseTags, tg.Content) {
			if err := tx.SetRemovedBaseTags(ctx, noteID, withoutString(inh.RemovedBaseTags, tg.Content)); err != nil {
				return err
			}
		}
		return tx.DeleteTag(ctx, tg.ID)
	}

	// Stale hide entries for tags the base no longer carries.
	if containsString(inh.RemovedBaseTags, tg.Content) {
		if err := tx.SetRemovedBaseTags(ctx, noteID, withoutString(inh.RemovedBaseTags, tg.Content)); err != nil {
			return err
		}
	}
	local, err := tx.ReviewedTagAdd(ctx, noteID, tg.Content)
	if err != nil {
		return err
	}
	if local != nil {
		return tx.DeleteTag(ctx, tg.ID)
	}
	return tx.PromoteTag(ctx, tg.ID)
}

func denyTag(ctx context.Context, tx Store, actor, tagID int64) error {
	tg, err := tx.TagByID(ctx, tagID)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextTagDeny)
	}
	if err != nil {
		return fmt.Errorf("load tag suggestion: %w", err)
	}
	if _, err := loadNote(ctx, tx, tg.Note, ContextTagDeny); err != nil {
		return err
	}
	if err := tx.DeleteTag(ctx, tg.ID); err != nil {
		return err
	}
	payload, err := marshalPayload(tagDeniedPayload{DeniedContent: tg.Content, Action: tg.Action})
	if err != nil {
		return err
	}
	return logDenied(ctx, tx, tg.Note, store.EventTagChangeDenied, actor, tg.Commit, nil, payload)
}
