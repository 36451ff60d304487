package review

import (
	"context"
	"errors"
	"fmt"

	"ankicollab/api/internal/store"
)

var ErrInheritanceCycle = errors.New("inheritance would form a cycle")

// EffectiveFields overlays base content onto the subscriber's reviewed
// fields. A subscribed position takes the base's reviewed content; any
// other position keeps the subscriber's own.
func EffectiveFields(ctx context.Context, s Store, note store.Note) (map[uint32]string, error) {
	ntFields, err := s.NotetypeFields(ctx, note.Notetype)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]string, len(ntFields))
	for _, nf := range ntFields {
		out[nf.Position] = ""
	}
	own, err := s.FieldsForNote(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	for _, f := range own {
		if f.Reviewed {
			out[f.Position] = f.Content
		}
	}

	inh, err := s.InheritanceForSubscriber(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	if inh == nil {
		return out, nil
	}
	baseFields, err := s.FieldsForNote(ctx, inh.BaseNote)
	if err != nil {
		return nil, err
	}
	for _, f := range baseFields {
		if f.Reviewed && inh.SubscribesTo(f.Position) {
			out[f.Position] = f.Content
		}
	}
	return out, nil
}

// EffectiveTags is the subscriber's visible tag set: local reviewed adds
// plus the base's, minus the hidden ones.
func EffectiveTags(ctx context.Context, s Store, noteID int64) ([]string, error) {
	own, err := s.ReviewedTagContents(ctx, noteID)
	if err != nil {
		return nil, err
	}
	inh, err := s.InheritanceForSubscriber(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if inh == nil {
		return own, nil
	}

	seen := make(map[string]struct{}, len(own))
	out := make([]string, 0, len(own))
	for _, tag := range own {
		if _, dup := seen[tag]; !dup {
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	baseTags, err := s.ReviewedTagContents(ctx, inh.BaseNote)
	if err != nil {
		return nil, err
	}
	for _, tag := range baseTags {
		if containsString(inh.RemovedBaseTags, tag) {
			continue
		}
		if _, dup := seen[tag]; !dup {
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out, nil
}

// Subscribe links a subscriber note to a base. Rejects self-links and any
// link that would close a cycle through existing subscriptions.
func (e *Engine) Subscribe(ctx context.Context, userID, subscriberNote, baseNote int64, subscribedFields []uint32) error {
	if subscriberNote == baseNote {
		return ErrInheritanceCycle
	}
	if _, err := e.authorizeNote(ctx, userID, subscriberNote, ContextNoteView); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		if _, err := loadNote(ctx, tx, baseNote, ContextNoteView); err != nil {
			return err
		}
		// Walk the base's own chain; hitting the subscriber means a cycle.
		seen := map[int64]struct{}{subscriberNote: {}}
		cursor := baseNote
		for {
			if _, hit := seen[cursor]; hit {
				return ErrInheritanceCycle
			}
			seen[cursor] = struct{}{}
			link, err := tx.InheritanceForSubscriber(ctx, cursor)
			if err != nil {
				return err
			}
			if link == nil {
				break
			}
			cursor = link.BaseNote
		}
		if existing, err := tx.InheritanceForSubscriber(ctx, subscriberNote); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("note %d already subscribes to %d", subscriberNote, existing.BaseNote)
		}
		if err := tx.InsertInheritance(ctx, store.NoteInheritance{
			SubscriberNote:   subscriberNote,
			BaseNote:         baseNote,
			SubscribedFields: subscribedFields,
			RemovedBaseTags:  []string{},
		}); err != nil {
			return err
		}
		bumps.add(subscriberNote)
		return nil
	})
}

// Unsubscribe severs the subscriber's link to its base.
func (e *Engine) Unsubscribe(ctx context.Context, userID, subscriberNote int64) error {
	if _, err := e.authorizeNote(ctx, userID, subscriberNote, ContextNoteView); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		if err := tx.DeleteInheritance(ctx, subscriberNote); err != nil {
			return err
		}
		bumps.add(subscriberNote)
		return nil
	})
}
