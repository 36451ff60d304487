package review

import (
	"context"
	"strings"

	"ankicollab/api/internal/store"
)

// FieldEdit is one position/content pair of a maintainer's direct edit.
type FieldEdit struct {
	Position uint32 `json:"position"`
	Content  string `json:"content"`
}

// FieldEditStatus reports what happened to one edit.
type FieldEditStatus string

const (
	EditUnchanged       FieldEditStatus = "unchanged"
	EditRemoved         FieldEditStatus = "removed"
	EditUpdated         FieldEditStatus = "updated"
	EditCreated         FieldEditStatus = "created"
	EditSkipped         FieldEditStatus = "skipped"
	EditInvalidPosition FieldEditStatus = "invalid_position"
	EditInherited       FieldEditStatus = "inherited"
)

type FieldEditResult struct {
	Position uint32          `json:"position"`
	Status   FieldEditStatus `json:"status"`
}

// BatchUpsertFieldSuggestions is the maintainer override path: it creates,
// updates, or retracts field suggestions inside one commit. Positions not on
// the notetype are rejected; positions the note inherits are read-only.
func (e *Engine) BatchUpsertFieldSuggestions(ctx context.Context, userID, noteID, commitID int64, edits []FieldEdit, clientIP string) ([]FieldEditResult, error) {
	if _, err := e.authorizeNote(ctx, userID, noteID, ContextFieldUpdate); err != nil {
		return nil, err
	}

	var results []FieldEditResult
	err := e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		note, err := loadNote(ctx, tx, noteID, ContextFieldUpdate)
		if err != nil {
			return err
		}
		ntFields, err := tx.NotetypeFields(ctx, note.Notetype)
		if err != nil {
			return err
		}
		valid := make(map[uint32]bool, len(ntFields))
		for _, nf := range ntFields {
			valid[nf.Position] = true
		}
		inh, err := tx.InheritanceForSubscriber(ctx, note.ID)
		if err != nil {
			return err
		}

		results = make([]FieldEditResult, 0, len(edits))
		changed := false
		for _, edit := range edits {
			status, err := e.upsertFieldEdit(ctx, tx, userID, note, commitID, edit, valid, inh, clientIP)
			if err != nil {
				return err
			}
			results = append(results, FieldEditResult{Position: edit.Position, Status: status})
			if status == EditRemoved || status == EditUpdated || status == EditCreated {
				changed = true
			}
		}
		if changed {
			bumps.add(note.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) upsertFieldEdit(ctx context.Context, tx Store, actor int64, note store.Note, commitID int64, edit FieldEdit, valid map[uint32]bool, inh *store.NoteInheritance, clientIP string) (FieldEditStatus, error) {
	if !valid[edit.Position] {
		return EditInvalidPosition, nil
	}
	if inh != nil && inh.SubscribesTo(edit.Position) {
		return EditInherited, nil
	}

	content := e.clean(strings.ReplaceAll(edit.Content, "\u200b", ""))

	baseline := ""
	if current, err := tx.ReviewedFieldAt(ctx, note.ID, edit.Position); err != nil {
		return "", err
	} else if current != nil {
		baseline = current.Content
	}

	existing, err := tx.FieldSuggestionAt(ctx, note.ID, edit.Position, commitID)
	if err != nil {
		return "", err
	}

	if existing != nil {
		if content == existing.Content {
			return EditUnchanged, nil
		}
		if content == baseline {
			if err := tx.DeleteField(ctx, existing.ID); err != nil {
				return "", err
			}
			old, err := marshalPayload(fieldPayload{Position: edit.Position, Content: existing.Content})
			if err != nil {
				return "", err
			}
			if err := logWith(ctx, tx, note.ID, store.EventFieldRemoved, actor, &commitID, nil, old, nil); err != nil {
				return "", err
			}
			return EditRemoved, nil
		}
		if err := tx.UpdateFieldContent(ctx, existing.ID, content); err != nil {
			return "", err
		}
		old, err := marshalPayload(fieldPayload{Position: edit.Position, Content: existing.Content})
		if err != nil {
			return "", err
		}
		newVal, err := marshalPayload(fieldPayload{Position: edit.Position, Content: content})
		if err != nil {
			return "", err
		}
		if err := logWith(ctx, tx, note.ID, store.EventFieldUpdated, actor, &commitID, nil, old, newVal); err != nil {
			return "", err
		}
		return EditUpdated, nil
	}

	if content == baseline || (trimmed(content) == "" && trimmed(baseline) == "") {
		return EditSkipped, nil
	}

	var ip *string
	if clientIP != "" {
		ip = &clientIP
	}
	cid := commitID
	if _, err := tx.InsertFieldSuggestion(ctx, store.Field{
		Note:      note.ID,
		Position:  edit.Position,
		Content:   content,
		Commit:    &cid,
		CreatorIP: ip,
	}); err != nil {
		return "", err
	}
	old, err := marshalPayload(fieldPayload{Position: edit.Position, Content: baseline})
	if err != nil {
		return "", err
	}
	newVal, err := marshalPayload(fieldPayload{Position: edit.Position, Content: content})
	if err != nil {
		return "", err
	}
	if err := logWith(ctx, tx, note.ID, store.EventFieldUpdated, actor, &cid, nil, old, newVal); err != nil {
		return "", err
	}
	return EditCreated, nil
}
