package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ankicollab/api/internal/store"
)

// Cleaner is the HTML sanitizer contract. Must be idempotent.
type Cleaner func(html string) string

// Refresher receives note ids whose media references need re-extraction
// after a merge. Implementations enqueue and return quickly.
type Refresher func(noteIDs []int64)

// Engine runs the suggestion and commit state machine. Every mutating
// operation opens one transaction (or one per note for bulk merges); reads
// go through the pool-bound view.
type Engine struct {
	begin   BeginTx
	view    Store
	clean   Cleaner
	refresh Refresher
}

func NewEngine(begin BeginTx, view Store, clean Cleaner, refresh Refresher) *Engine {
	if clean == nil {
		clean = func(s string) string { return s }
	}
	return &Engine{begin: begin, view: view, clean: clean, refresh: refresh}
}

// bumpList collects note ids across one transaction; flush runs the batched
// timestamp update once at the end.
type bumpList struct {
	ids map[int64]struct{}
}

func newBumpList() *bumpList {
	return &bumpList{ids: make(map[int64]struct{})}
}

func (b *bumpList) add(ids ...int64) {
	for _, id := range ids {
		b.ids[id] = struct{}{}
	}
}

func (b *bumpList) flush(ctx context.Context, s Store) error {
	if len(b.ids) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(b.ids))
	for id := range b.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return s.BumpNotesAndDecks(ctx, ids)
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// loadNote maps a vanished note onto the operation's not-found context.
func loadNote(ctx context.Context, s Store, noteID int64, c NotFoundContext) (store.Note, error) {
	n, err := s.NoteByID(ctx, noteID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Note{}, noteNotFound(c)
	}
	if err != nil {
		return store.Note{}, fmt.Errorf("load note: %w", err)
	}
	return n, nil
}

// authorizeNote checks the actor against the note's deck chain.
func (e *Engine) authorizeNote(ctx context.Context, userID, noteID int64, c NotFoundContext) (store.Note, error) {
	n, err := loadNote(ctx, e.view, noteID, c)
	if err != nil {
		return store.Note{}, err
	}
	ok, err := e.view.CanUserAccessDeck(ctx, userID, n.Deck)
	if err != nil {
		return store.Note{}, err
	}
	if !ok {
		return store.Note{}, ErrUnauthorized
	}
	return n, nil
}

func (e *Engine) logEvent(ctx context.Context, s Store, in store.NoteEventInput) error {
	_, err := s.LogNoteEvent(ctx, in)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextLogEvent)
	}
	return err
}

// inTx runs fn inside one transaction, flushing the bump list before commit.
func (e *Engine) inTx(ctx context.Context, fn func(tx Tx, bumps *bumpList) error) error {
	tx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	bumps := newBumpList()
	if err := fn(tx, bumps); err != nil {
		return err
	}
	if err := bumps.flush(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// --- public per-suggestion entry points ---

func (e *Engine) ApproveField(ctx context.Context, userID, fieldID int64) error {
	f, err := e.view.FieldByID(ctx, fieldID)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextFieldApprove)
	}
	if err != nil {
		return fmt.Errorf("load field: %w", err)
	}
	if _, err := e.authorizeNote(ctx, userID, f.Note, ContextFieldApprove); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		return approveField(ctx, tx, userID, fieldID, bumps)
	})
}

func (e *Engine) DenyField(ctx context.Context, userID, fieldID int64) error {
	f, err := e.view.FieldByID(ctx, fieldID)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextFieldDeny)
	}
	if err != nil {
		return fmt.Errorf("load field: %w", err)
	}
	if _, err := e.authorizeNote(ctx, userID, f.Note, ContextFieldDeny); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		return denyField(ctx, tx, userID, fieldID)
	})
}

func (e *Engine) ApproveTag(ctx context.Context, userID, tagID int64) error {
	tg, err := e.view.TagByID(ctx, tagID)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextTagApprove)
	}
	if err != nil {
		return fmt.Errorf("load tag: %w", err)
	}
	if _, err := e.authorizeNote(ctx, userID, tg.Note, ContextTagApprove); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		return approveTag(ctx, tx, userID, tagID, bumps)
	})
}

func (e *Engine) DenyTag(ctx context.Context, userID, tagID int64) error {
	tg, err := e.view.TagByID(ctx, tagID)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextTagDeny)
	}
	if err != nil {
		return fmt.Errorf("load tag: %w", err)
	}
	if _, err := e.authorizeNote(ctx, userID, tg.Note, ContextTagDeny); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		return denyTag(ctx, tx, userID, tagID)
	})
}

func (e *Engine) ApproveMove(ctx context.Context, userID, moveID int64) error {
	m, err := e.view.MoveSuggestionByID(ctx, moveID)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextMoveRequest)
	}
	if err != nil {
		return fmt.Errorf("load move suggestion: %w", err)
	}
	if _, err := e.authorizeNote(ctx, userID, m.Note, ContextMoveRequest); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		return approveMove(ctx, tx, userID, m.Note, m.TargetDeck, &m.Commit, bumps)
	})
}

func (e *Engine) DenyMove(ctx context.Context, userID, moveID int64) error {
	m, err := e.view.MoveSuggestionByID(ctx, moveID)
	if errors.Is(err, sql.ErrNoRows) {
		return noteNotFound(ContextMoveRequest)
	}
	if err != nil {
		return fmt.Errorf("load move suggestion: %w", err)
	}
	if _, err := e.authorizeNote(ctx, userID, m.Note, ContextMoveRequest); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		return denyMove(ctx, tx, userID, moveID)
	})
}

// MarkDeleted soft-deletes a note and clears its pending suggestions.
// Returns the deck's human hash; repeating the call is a no-op returning
// the same hash.
func (e *Engine) MarkDeleted(ctx context.Context, userID, noteID int64) (string, error) {
	if _, err := e.authorizeNote(ctx, userID, noteID, ContextMarkDeleted); err != nil {
		return "", err
	}
	var hash string
	err := e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		var err error
		hash, err = markDeleted(ctx, tx, userID, noteID, false, bumps)
		return err
	})
	if err != nil {
		return "", err
	}
	return hash, nil
}

func (e *Engine) DenyDeletionRequest(ctx context.Context, userID, noteID int64) error {
	if _, err := e.authorizeNote(ctx, userID, noteID, ContextDeleteCard); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		return tx.DeleteDeletionSuggestionsForNote(ctx, noteID)
	})
}
