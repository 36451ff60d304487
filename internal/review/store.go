package review

import (
	"context"

	"ankicollab/api/internal/store"
)

// Store is the persistence surface the engine operates over. The postgres
// query layer satisfies it both transaction-bound and pool-bound; tests
// substitute an in-memory implementation.
type Store interface {
	// notes
	NoteByID(ctx context.Context, noteID int64) (store.Note, error)
	SetNoteDeck(ctx context.Context, noteID, deckID int64) error
	SetNoteDeleted(ctx context.Context, noteID int64) error
	SetNoteReviewed(ctx context.Context, noteID int64) error
	DeleteNote(ctx context.Context, noteID int64) error

	// decks, notetypes, commits, users
	DeckByID(ctx context.Context, deckID int64) (store.Deck, error)
	NotetypeFields(ctx context.Context, notetypeID int64) ([]store.NotetypeField, error)
	CommitByID(ctx context.Context, commitID int64) (store.Commit, error)
	UserByID(ctx context.Context, userID int64) (store.User, error)

	// event log
	LogNoteEvent(ctx context.Context, in store.NoteEventInput) (int64, error)
	NoteHasEvents(ctx context.Context, noteID int64) (bool, error)

	// fields
	FieldByID(ctx context.Context, fieldID int64) (store.Field, error)
	FieldsForNote(ctx context.Context, noteID int64) ([]store.Field, error)
	ReviewedFieldAt(ctx context.Context, noteID int64, position uint32) (*store.Field, error)
	CountFieldsForNote(ctx context.Context, noteID int64) (int, error)
	CountReviewedFieldsAt(ctx context.Context, noteID int64, position uint32) (int, error)
	HasNonEmptyReviewedFieldAtZero(ctx context.Context, noteID, excludeFieldID int64) (bool, error)
	DeleteField(ctx context.Context, fieldID int64) error
	DeleteReviewedFieldsAt(ctx context.Context, noteID int64, position uint32, exceptID int64) error
	DeleteUnreviewedFieldsForNote(ctx context.Context, noteID int64) error
	PromoteField(ctx context.Context, fieldID int64) error
	PromoteFieldsForNote(ctx context.Context, noteID int64) error
	UpdateFieldContent(ctx context.Context, fieldID int64, content string) error
	InsertFieldSuggestion(ctx context.Context, f store.Field) (int64, error)
	FieldSuggestionAt(ctx context.Context, noteID int64, position uint32, commitID int64) (*store.Field, error)
	FieldSuggestionsForNoteInCommit(ctx context.Context, noteID, commitID int64) ([]store.Field, error)
	UnreviewedFieldsForCommit(ctx context.Context, commitID int64) ([]store.Field, error)
	HasSuggestionAtOtherCommit(ctx context.Context, noteID int64, position uint32, commitID int64) (bool, error)

	// tags
	TagByID(ctx context.Context, tagID int64) (store.Tag, error)
	TagsForNote(ctx context.Context, noteID int64) ([]store.Tag, error)
	ReviewedTagAdd(ctx context.Context, noteID int64, content string) (*store.Tag, error)
	ReviewedTagContents(ctx context.Context, noteID int64) ([]string, error)
	PromoteTag(ctx context.Context, tagID int64) error
	PromoteTagsForNote(ctx context.Context, noteID int64) error
	DeleteTag(ctx context.Context, tagID int64) error
	DeleteReviewedTagAdds(ctx context.Context, noteID int64, content string) error
	DeleteUnreviewedTagsForNote(ctx context.Context, noteID int64) error
	TagSuggestionsForNoteInCommit(ctx context.Context, noteID, commitID int64) ([]store.Tag, error)
	UnreviewedTagsForCommit(ctx context.Context, commitID int64) ([]store.Tag, error)

	// inheritance
	InheritanceForSubscriber(ctx context.Context, noteID int64) (*store.NoteInheritance, error)
	SubscriberInheritances(ctx context.Context, baseNoteID int64) ([]store.NoteInheritance, error)
	SetRemovedBaseTags(ctx context.Context, subscriberNoteID int64, tags []string) error
	InsertInheritance(ctx context.Context, ni store.NoteInheritance) error
	DeleteInheritance(ctx context.Context, subscriberNoteID int64) error

	// move suggestions
	MoveSuggestionByID(ctx context.Context, moveID int64) (store.MoveSuggestion, error)
	MoveSuggestionsForNote(ctx context.Context, noteID int64) ([]store.MoveSuggestion, error)
	MoveSuggestionsForCommit(ctx context.Context, commitID int64) ([]store.MoveSuggestion, error)
	DeleteMoveSuggestion(ctx context.Context, moveID int64) error
	DeleteMoveSuggestionsMatching(ctx context.Context, noteID, targetDeck int64) error
	DeleteMoveSuggestionsForNote(ctx context.Context, noteID int64) error
	DeleteMoveSuggestionsForCommit(ctx context.Context, commitID int64) error

	// deletion suggestions
	DeletionSuggestionExists(ctx context.Context, noteID int64) (bool, error)
	DeletionSuggestionsForCommit(ctx context.Context, commitID int64) ([]store.DeletionSuggestion, error)
	DeleteDeletionSuggestionsForNote(ctx context.Context, noteID int64) error
	DeleteDeletionSuggestionsForCommit(ctx context.Context, commitID int64) error

	// access and bookkeeping
	CanUserAccessDeck(ctx context.Context, userID, deckID int64) (bool, error)
	BumpNotesAndDecks(ctx context.Context, noteIDs []int64) error
	PendingCommits(ctx context.Context, userID int64, isAdmin bool) ([]store.Commit, error)
}

// Tx is a Store bound to an open transaction.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// BeginTx opens a transaction-bound Store; the concrete type comes from the
// wiring in cmd/api.
type BeginTx func(ctx context.Context) (Tx, error)
