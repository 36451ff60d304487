package review

import (
	"context"
	"testing"
	"time"

	"ankicollab/api/internal/store"
)

func TestGetNoteData(t *testing.T) {
	fx := newFixture()
	other := fx.fs.addDeck(nil, fx.owner, "Catalan")
	note := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(note, 0, "Front text", true, nil)
	fx.fs.addTag(note, "reviewed-tag", true, true, nil)
	commit := fx.fs.addCommit(fx.deck, time.Now())
	fx.fs.addField(note, 0, "Front v2", false, &commit)
	fx.fs.addTag(note, "fresh", false, true, &commit)
	fx.fs.addTag(note, "stale", false, false, &commit)
	fx.fs.deletions[note] = commit
	moveID := fx.fs.id()
	fx.fs.moves[moveID] = store.MoveSuggestion{ID: moveID, Note: note, TargetDeck: other, Commit: commit}

	data, err := fx.e.GetNoteData(context.Background(), note)
	if err != nil {
		t.Fatalf("get note data: %v", err)
	}

	if data.Deck != "Spanish" || !data.Reviewed || !data.DeleteReq {
		t.Fatalf("header = %+v", data)
	}
	if len(data.NoteModelFields) != 2 || data.NoteModelFields[0] != "Front" {
		t.Fatalf("model fields = %v", data.NoteModelFields)
	}
	// Every position gets a row, vacant ones stay empty.
	if len(data.ReviewedFields) != 2 {
		t.Fatalf("reviewed fields = %+v", data.ReviewedFields)
	}
	if data.ReviewedFields[0].Content != "Front text" || data.ReviewedFields[1].Content != "" {
		t.Fatalf("reviewed fields = %+v", data.ReviewedFields)
	}
	if len(data.UnconfirmedFields) != 1 || data.UnconfirmedFields[0].Content != "Front v2" {
		t.Fatalf("unconfirmed = %+v", data.UnconfirmedFields)
	}
	if data.UnconfirmedFields[0].CurrentContent != "Front text" {
		t.Fatalf("current content = %q", data.UnconfirmedFields[0].CurrentContent)
	}
	if len(data.ReviewedTags) != 1 || len(data.NewTags) != 1 || len(data.RemovedTags) != 1 {
		t.Fatalf("tags = %v / %v / %v", data.ReviewedTags, data.NewTags, data.RemovedTags)
	}
	if len(data.NoteMoveDecks) != 1 || data.NoteMoveDecks[0].FullPath != "Catalan" {
		t.Fatalf("move decks = %+v", data.NoteMoveDecks)
	}
}

func TestGetCommitNotesCapAndContent(t *testing.T) {
	fx := newFixture()
	commit := fx.fs.addCommit(fx.deck, time.Now())
	note := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(note, 0, "Old", true, nil)
	fx.fs.addField(note, 0, "New", false, &commit)
	fx.fs.addTag(note, "plus", false, true, &commit)
	fx.fs.deletions[note] = commit

	items, err := fx.e.GetCommitNotes(context.Background(), commit)
	if err != nil {
		t.Fatalf("get commit notes: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d notes", len(items))
	}
	cd := items[0]
	if !cd.DeleteRequested || cd.MoveRequested {
		t.Fatalf("flags = %+v", cd)
	}
	if len(cd.UnconfirmedFields) != 1 || cd.UnconfirmedFields[0].CurrentContent != "Old" {
		t.Fatalf("unconfirmed = %+v", cd.UnconfirmedFields)
	}
	if len(cd.NewTags) != 1 || cd.NewTags[0] != "plus" {
		t.Fatalf("new tags = %v", cd.NewTags)
	}
}

func TestGetAllFieldsForEdit(t *testing.T) {
	fx := newFixture()
	base := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(base, 0, "base front", true, nil)
	sub := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(sub, 0, "own front", true, nil)
	fx.fs.addField(sub, 1, "own back", true, nil)
	fx.fs.inheritance[sub] = store.NoteInheritance{
		SubscriberNote:   sub,
		BaseNote:         base,
		SubscribedFields: []uint32{0},
		RemovedBaseTags:  []string{},
	}
	thisCommit := fx.fs.addCommit(fx.deck, time.Now())
	otherCommit := fx.fs.addCommit(fx.deck, time.Now())
	suggestion := fx.fs.addField(sub, 1, "back v2", false, &thisCommit)
	fx.fs.addField(sub, 1, "back v3", false, &otherCommit)

	rows, err := fx.e.GetAllFieldsForEdit(context.Background(), sub, thisCommit)
	if err != nil {
		t.Fatalf("get fields for edit: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	front, back := rows[0], rows[1]
	if !front.Inherited || front.ReviewedContent != "base front" {
		t.Fatalf("front = %+v, want inherited base overlay", front)
	}
	if back.Inherited {
		t.Fatalf("back = %+v, want local", back)
	}
	if back.SuggestionID == nil || *back.SuggestionID != suggestion || back.SuggestionContent != "back v2" {
		t.Fatalf("back suggestion = %+v", back)
	}
	if !back.HasOtherSuggestions {
		t.Fatal("other-commit suggestion not flagged")
	}
}
