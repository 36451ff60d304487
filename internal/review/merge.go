package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"ankicollab/api/internal/store"
)

// commitWork is everything a commit still proposes, loaded once per merge.
type commitWork struct {
	fields    []store.Field
	tags      []store.Tag
	moves     []store.MoveSuggestion
	deletions []store.DeletionSuggestion
	notes     map[int64]store.Note
	noteIDs   []int64
}

func loadCommitWork(ctx context.Context, s Store, commitID int64) (*commitWork, error) {
	w := &commitWork{notes: make(map[int64]store.Note)}
	var err error
	if w.fields, err = s.UnreviewedFieldsForCommit(ctx, commitID); err != nil {
		return nil, err
	}
	if w.tags, err = s.UnreviewedTagsForCommit(ctx, commitID); err != nil {
		return nil, err
	}
	if w.moves, err = s.MoveSuggestionsForCommit(ctx, commitID); err != nil {
		return nil, err
	}
	if w.deletions, err = s.DeletionSuggestionsForCommit(ctx, commitID); err != nil {
		return nil, err
	}

	ids := make(map[int64]struct{})
	for _, f := range w.fields {
		ids[f.Note] = struct{}{}
	}
	for _, tg := range w.tags {
		ids[tg.Note] = struct{}{}
	}
	for _, m := range w.moves {
		ids[m.Note] = struct{}{}
	}
	for _, d := range w.deletions {
		ids[d.Note] = struct{}{}
	}
	for id := range ids {
		n, err := s.NoteByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load affected note: %w", err)
		}
		w.notes[id] = n
		w.noteIDs = append(w.noteIDs, id)
	}
	sort.Slice(w.noteIDs, func(i, j int) bool { return w.noteIDs[i] < w.noteIDs[j] })
	return w, nil
}

// restrict narrows the work to the listed notes.
func (w *commitWork) restrict(noteIDs []int64) *commitWork {
	keep := make(map[int64]struct{}, len(noteIDs))
	for _, id := range noteIDs {
		keep[id] = struct{}{}
	}
	out := &commitWork{notes: make(map[int64]store.Note)}
	for _, f := range w.fields {
		if _, ok := keep[f.Note]; ok {
			out.fields = append(out.fields, f)
		}
	}
	for _, tg := range w.tags {
		if _, ok := keep[tg.Note]; ok {
			out.tags = append(out.tags, tg)
		}
	}
	for _, m := range w.moves {
		if _, ok := keep[m.Note]; ok {
			out.moves = append(out.moves, m)
		}
	}
	for _, d := range w.deletions {
		if _, ok := keep[d.Note]; ok {
			out.deletions = append(out.deletions, d)
		}
	}
	for id, n := range w.notes {
		if _, ok := keep[id]; ok {
			out.notes[id] = n
			out.noteIDs = append(out.noteIDs, id)
		}
	}
	sort.Slice(out.noteIDs, func(i, j int) bool { return out.noteIDs[i] < out.noteIDs[j] })
	return out
}

// resolveCommit loads the commit, its deck, and checks the actor.
func (e *Engine) resolveCommit(ctx context.Context, userID, commitID int64) (store.Commit, error) {
	c, err := e.view.CommitByID(ctx, commitID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Commit{}, ErrCommitNotFound
	}
	if err != nil {
		return store.Commit{}, fmt.Errorf("load commit: %w", err)
	}
	if _, err := e.view.DeckByID(ctx, c.Deck); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Commit{}, ErrCommitDeckNotFound
		}
		return store.Commit{}, fmt.Errorf("load commit deck: %w", err)
	}
	ok, err := e.view.CanUserAccessDeck(ctx, userID, c.Deck)
	if err != nil {
		return store.Commit{}, err
	}
	if !ok {
		return store.Commit{}, ErrUnauthorized
	}
	return c, nil
}

// MergeByCommit resolves every pending suggestion of a commit in one
// transaction and returns the next pending commit the user should review,
// or nil when the queue is empty.
func (e *Engine) MergeByCommit(ctx context.Context, userID, commitID int64, approve bool) (*int64, error) {
	c, err := e.resolveCommit(ctx, userID, commitID)
	if err != nil {
		return nil, err
	}

	var affected []int64
	err = e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
		work, err := loadCommitWork(ctx, tx, commitID)
		if err != nil {
			return err
		}
		if len(work.noteIDs) == 0 {
			return ErrNoNotesAffected
		}
		affected, err = mergeWork(ctx, tx, userID, commitID, work, approve, bumps)
		return err
	})
	if err != nil {
		return nil, err
	}

	if e.refresh != nil && len(affected) > 0 {
		e.refresh(affected)
	}
	return e.nextReview(ctx, userID, c)
}

// mergeWork applies the approve or deny path over one unit of work and
// returns the note ids that received an effect event.
func mergeWork(ctx context.Context, tx Store, userID, commitID int64, work *commitWork, approve bool, bumps *bumpList) ([]int64, error) {
	if approve {
		return mergeApprove(ctx, tx, userID, commitID, work, bumps)
	}
	return mergeDeny(ctx, tx, userID, commitID, work)
}

func mergeApprove(ctx context.Context, tx Store, userID, commitID int64, work *commitWork, bumps *bumpList) ([]int64, error) {
	// Suggestions on reviewed notes resolve individually; unreviewed notes
	// are approved wholesale by approveCard below.
	for _, tg := range work.tags {
		if work.notes[tg.Note].Reviewed {
			if err := approveTag(ctx, tx, userID, tg.ID, bumps); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range work.fields {
		if work.notes[f.Note].Reviewed {
			if err := approveField(ctx, tx, userID, f.ID, bumps); err != nil {
				return nil, err
			}
		}
	}

	deleted := make(map[int64]bool, len(work.deletions))
	for _, d := range work.deletions {
		if _, err := markDeleted(ctx, tx, userID, d.Note, true, bumps); err != nil {
			return nil, err
		}
		deleted[d.Note] = true
	}
	for _, m := range work.moves {
		if deleted[m.Note] {
			continue
		}
		if err := approveMove(ctx, tx, userID, m.Note, m.TargetDeck, &m.Commit, bumps); err != nil {
			return nil, err
		}
	}
	for _, id := range work.noteIDs {
		n := work.notes[id]
		if !n.Reviewed && !deleted[id] {
			if err := approveCard(ctx, tx, userID, id, &commitID); err != nil {
				return nil, err
			}
		}
	}

	for _, id := range work.noteIDs {
		bumps.add(id)
		if err := logApproved(ctx, tx, id, store.EventCommitApprovedEffect, userID, &commitID, nil, nil); err != nil {
			return nil, err
		}
	}
	return work.noteIDs, nil
}

func mergeDeny(ctx context.Context, tx Store, userID, commitID int64, work *commitWork) ([]int64, error) {
	// Reviewed notes keep their accepted state; each of their suggestions
	// is denied individually. Unreviewed notes disappear entirely.
	survivors := make([]int64, 0, len(work.noteIDs))
	for _, id := range work.noteIDs {
		n := work.notes[id]
		if n.Reviewed {
			for _, tg := range work.tags {
				if tg.Note == id {
					if err := denyTag(ctx, tx, userID, tg.ID); err != nil {
						return nil, err
					}
				}
			}
			for _, f := range work.fields {
				if f.Note == id {
					if err := denyField(ctx, tx, userID, f.ID); err != nil {
						return nil, err
					}
				}
			}
			survivors = append(survivors, id)
			continue
		}
		if err := tx.DeleteNote(ctx, id); err != nil {
			return nil, err
		}
	}

	for _, m := range work.moves {
		if !work.notes[m.Note].Reviewed {
			continue
		}
		if err := tx.DeleteMoveSuggestion(ctx, m.ID); err != nil {
			return nil, err
		}
	}
	for _, d := range work.deletions {
		if !work.notes[d.Note].Reviewed {
			continue
		}
		if err := tx.DeleteDeletionSuggestionsForNote(ctx, d.Note); err != nil {
			return nil, err
		}
	}

	for _, id := range survivors {
		if err := logDenied(ctx, tx, id, store.EventCommitDeniedEffect, userID, &commitID, nil, nil); err != nil {
			return nil, err
		}
	}
	return survivors, nil
}

// MergeByNoteIDs resolves a commit's suggestions note by note, each in its
// own transaction, so one invalid note does not discard the rest.
func (e *Engine) MergeByNoteIDs(ctx context.Context, userID, commitID int64, noteIDs []int64, approve bool) ([]store.NoteMergeResult, error) {
	if _, err := e.resolveCommit(ctx, userID, commitID); err != nil {
		return nil, err
	}
	if len(noteIDs) == 0 {
		return nil, ErrNoNotesAffected
	}

	results := make([]store.NoteMergeResult, 0, len(noteIDs))
	merged := make([]int64, 0, len(noteIDs))
	for _, noteID := range noteIDs {
		err := e.inTx(ctx, func(tx Tx, bumps *bumpList) error {
			work, err := loadCommitWork(ctx, tx, commitID)
			if err != nil {
				return err
			}
			work = work.restrict([]int64{noteID})
			if len(work.noteIDs) == 0 {
				return ErrNoNotesAffected
			}
			_, err = mergeWork(ctx, tx, userID, commitID, work, approve, bumps)
			return err
		})
		if err != nil {
			results = append(results, store.NoteMergeResult{NoteID: noteID, Success: false, Reason: err.Error()})
			continue
		}
		results = append(results, store.NoteMergeResult{NoteID: noteID, Success: true})
		merged = append(merged, noteID)
	}

	if e.refresh != nil && len(merged) > 0 {
		e.refresh(merged)
	}
	return results, nil
}

// nextReview picks the pending commit after the current one in timestamp
// order, falling back to the one before it.
func (e *Engine) nextReview(ctx context.Context, userID int64, current store.Commit) (*int64, error) {
	user, err := e.view.UserByID(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load user: %w", err)
	}
	pending, err := e.view.PendingCommits(ctx, userID, user.Admin)
	if err != nil {
		return nil, err
	}

	var prev *int64
	for i := range pending {
		c := pending[i]
		if c.CommitID == current.CommitID {
			continue
		}
		after := c.Timestamp.After(current.Timestamp) ||
			(c.Timestamp.Equal(current.Timestamp) && c.CommitID > current.CommitID)
		if after {
			id := c.CommitID
			return &id, nil
		}
		id := c.CommitID
		prev = &id
	}
	return prev, nil
}
