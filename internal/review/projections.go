package review

import (
	"context"
	"sort"
	"time"

	"ankicollab/api/internal/store"
)

const maxCommitNotes = 1000

// FieldView is one positioned field of the review view.
type FieldView struct {
	Position uint32 `json:"position"`
	Name     string `json:"name"`
	Content  string `json:"content"`
}

// SuggestedField pairs a pending suggestion with the reviewed content it
// would replace. Suggestion content stays raw; the UI diffs it against the
// sanitized current value.
type SuggestedField struct {
	ID             int64  `json:"id"`
	Position       uint32 `json:"position"`
	Content        string `json:"content"`
	CurrentContent string `json:"current_content"`
	Commit         *int64 `json:"commit,omitempty"`
}

// MoveTarget is one distinct requested destination deck.
type MoveTarget struct {
	FullPath     string `json:"full_path"`
	SuggestionID int64  `json:"suggestion_id"`
}

// NoteData is the "review this note" view.
type NoteData struct {
	ID                int64            `json:"id"`
	GUID              string           `json:"guid"`
	Owner             int64            `json:"owner"`
	Deck              string           `json:"deck"`
	LastUpdate        time.Time        `json:"last_update"`
	Reviewed          bool             `json:"reviewed"`
	DeleteReq         bool             `json:"delete_req"`
	NoteModelFields   []string         `json:"note_model_fields"`
	ReviewedFields    []FieldView      `json:"reviewed_fields"`
	UnconfirmedFields []SuggestedField `json:"unconfirmed_fields"`
	ReviewedTags      []string         `json:"reviewed_tags"`
	NewTags           []string         `json:"new_tags"`
	RemovedTags       []string         `json:"removed_tags"`
	NoteMoveDecks     []MoveTarget     `json:"note_move_decks"`
}

// GetNoteData assembles the review view for one note.
func (e *Engine) GetNoteData(ctx context.Context, noteID int64) (NoteData, error) {
	note, err := loadNote(ctx, e.view, noteID, ContextNoteView)
	if err != nil {
		return NoteData{}, err
	}
	deck, err := e.view.DeckByID(ctx, note.Deck)
	if err != nil {
		return NoteData{}, err
	}
	ntFields, err := e.view.NotetypeFields(ctx, note.Notetype)
	if err != nil {
		return NoteData{}, err
	}

	data := NoteData{
		ID:         note.ID,
		GUID:       note.GUID,
		Owner:      deck.Owner,
		Deck:       deck.FullPath,
		LastUpdate: note.LastUpdate,
		Reviewed:   note.Reviewed,
	}

	// Placeholders for every notetype position, overwritten by the note's
	// reviewed rows.
	byPos := make(map[uint32]int, len(ntFields))
	for _, nf := range ntFields {
		data.NoteModelFields = append(data.NoteModelFields, nf.Name)
		byPos[nf.Position] = len(data.ReviewedFields)
		data.ReviewedFields = append(data.ReviewedFields, FieldView{Position: nf.Position, Name: nf.Name})
	}

	fields, err := e.view.FieldsForNote(ctx, note.ID)
	if err != nil {
		return NoteData{}, err
	}
	for _, f := range fields {
		if f.Reviewed {
			if i, ok := byPos[f.Position]; ok {
				data.ReviewedFields[i].Content = e.clean(f.Content)
			}
			continue
		}
		current := ""
		if i, ok := byPos[f.Position]; ok {
			current = data.ReviewedFields[i].Content
		}
		data.UnconfirmedFields = append(data.UnconfirmedFields, SuggestedField{
			ID:             f.ID,
			Position:       f.Position,
			Content:        f.Content,
			CurrentContent: current,
			Commit:         f.Commit,
		})
	}

	tags, err := e.view.TagsForNote(ctx, note.ID)
	if err != nil {
		return NoteData{}, err
	}
	data.ReviewedTags, data.NewTags, data.RemovedTags = partitionTags(tags)

	data.DeleteReq, err = e.view.DeletionSuggestionExists(ctx, note.ID)
	if err != nil {
		return NoteData{}, err
	}

	moves, err := e.view.MoveSuggestionsForNote(ctx, note.ID)
	if err != nil {
		return NoteData{}, err
	}
	seen := make(map[string]bool)
	for _, m := range moves {
		target, err := e.view.DeckByID(ctx, m.TargetDeck)
		if err != nil {
			return NoteData{}, err
		}
		if seen[target.FullPath] {
			continue
		}
		seen[target.FullPath] = true
		data.NoteMoveDecks = append(data.NoteMoveDecks, MoveTarget{FullPath: target.FullPath, SuggestionID: m.ID})
	}
	return data, nil
}

func partitionTags(tags []store.Tag) (reviewed, added, removed []string) {
	for _, tg := range tags {
		switch {
		case tg.Reviewed && tg.Action:
			reviewed = append(reviewed, tg.Content)
		case !tg.Reviewed && tg.Action:
			added = append(added, tg.Content)
		case !tg.Reviewed && !tg.Action:
			removed = append(removed, tg.Content)
		}
	}
	return reviewed, added, removed
}

// CommitData is one note's portion of the "review this commit" view.
type CommitData struct {
	NoteID            int64            `json:"note_id"`
	GUID              string           `json:"guid"`
	Deck              string           `json:"deck"`
	Reviewed          bool             `json:"reviewed"`
	UnconfirmedFields []SuggestedField `json:"unconfirmed_fields"`
	NewTags           []string         `json:"new_tags"`
	RemovedTags       []string         `json:"removed_tags"`
	MoveRequested     bool             `json:"move_requested"`
	DeleteRequested   bool             `json:"delete_requested"`
}

// GetCommitNotes assembles the commit review view, capped at 1000 notes.
func (e *Engine) GetCommitNotes(ctx context.Context, commitID int64) ([]CommitData, error) {
	work, err := loadCommitWork(ctx, e.view, commitID)
	if err != nil {
		return nil, err
	}

	moveNotes := make(map[int64]bool, len(work.moves))
	for _, m := range work.moves {
		moveNotes[m.Note] = true
	}
	deleteNotes := make(map[int64]bool, len(work.deletions))
	for _, d := range work.deletions {
		deleteNotes[d.Note] = true
	}

	out := make([]CommitData, 0, len(work.noteIDs))
	for _, id := range work.noteIDs {
		if len(out) == maxCommitNotes {
			break
		}
		note := work.notes[id]
		deck, err := e.view.DeckByID(ctx, note.Deck)
		if err != nil {
			return nil, err
		}
		cd := CommitData{
			NoteID:          note.ID,
			GUID:            note.GUID,
			Deck:            deck.FullPath,
			Reviewed:        note.Reviewed,
			MoveRequested:   moveNotes[id],
			DeleteRequested: deleteNotes[id],
		}
		for _, f := range work.fields {
			if f.Note != id {
				continue
			}
			current := ""
			if existing, err := e.view.ReviewedFieldAt(ctx, id, f.Position); err != nil {
				return nil, err
			} else if existing != nil {
				current = e.clean(existing.Content)
			}
			cd.UnconfirmedFields = append(cd.UnconfirmedFields, SuggestedField{
				ID:             f.ID,
				Position:       f.Position,
				Content:        e.clean(f.Content),
				CurrentContent: current,
				Commit:         f.Commit,
			})
		}
		for _, tg := range work.tags {
			if tg.Note != id {
				continue
			}
			if tg.Action {
				cd.NewTags = append(cd.NewTags, tg.Content)
			} else {
				cd.RemovedTags = append(cd.RemovedTags, tg.Content)
			}
		}
		out = append(out, cd)
	}
	return out, nil
}

// EditField is one row of the maintainer edit form.
type EditField struct {
	Position            uint32 `json:"position"`
	Name                string `json:"name"`
	ReviewedContent     string `json:"reviewed_content"`
	SuggestionID        *int64 `json:"suggestion_id,omitempty"`
	SuggestionContent   string `json:"suggestion_content"`
	Inherited           bool   `json:"inherited"`
	HasOtherSuggestions bool   `json:"has_other_suggestions"`
}

// GetAllFieldsForEdit lists every notetype position with the note's current
// content (base overlay applied), the pending suggestion of this commit,
// and whether other commits also touch the position.
func (e *Engine) GetAllFieldsForEdit(ctx context.Context, noteID, commitID int64) ([]EditField, error) {
	note, err := loadNote(ctx, e.view, noteID, ContextNoteView)
	if err != nil {
		return nil, err
	}
	ntFields, err := e.view.NotetypeFields(ctx, note.Notetype)
	if err != nil {
		return nil, err
	}
	if len(ntFields) == 0 {
		return nil, ErrNoNotetypesAffected
	}
	inh, err := e.view.InheritanceForSubscriber(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	effective, err := EffectiveFields(ctx, e.view, note)
	if err != nil {
		return nil, err
	}

	out := make([]EditField, 0, len(ntFields))
	for _, nf := range ntFields {
		row := EditField{
			Position:        nf.Position,
			Name:            nf.Name,
			ReviewedContent: e.clean(effective[nf.Position]),
			Inherited:       inh != nil && inh.SubscribesTo(nf.Position),
		}
		suggestion, err := e.view.FieldSuggestionAt(ctx, note.ID, nf.Position, commitID)
		if err != nil {
			return nil, err
		}
		if suggestion != nil {
			id := suggestion.ID
			row.SuggestionID = &id
			row.SuggestionContent = suggestion.Content
		}
		row.HasOtherSuggestions, err = e.view.HasSuggestionAtOtherCommit(ctx, note.ID, nf.Position, commitID)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}
