package store

import (
	"context"
	"fmt"
)

// CanUserAccessDeck resolves review authorization: admins and the deck's
// owner pass immediately; otherwise the user must be a maintainer of the
// deck or of any ancestor. The ancestor walk runs as one recursive query,
// bounded by the deck-forest invariant.
func (t *ReviewTx) CanUserAccessDeck(ctx context.Context, userID, deckID int64) (bool, error) {
	var allowed bool
	err := t.q.QueryRowContext(ctx, `
		WITH RECURSIVE chain AS (
			SELECT id, parent, owner FROM decks WHERE id=$2
			UNION ALL
			SELECT d.id, d.parent, d.owner FROM decks d JOIN chain c ON d.id = c.parent
		)
		SELECT EXISTS(SELECT 1 FROM users WHERE id=$1 AND admin)
			OR EXISTS(SELECT 1 FROM decks WHERE id=$2 AND owner=$1)
			OR EXISTS(SELECT 1 FROM maintainers m JOIN chain c ON m.deck = c.id WHERE m.user_id=$1)
	`, userID, deckID).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("check deck access: %w", err)
	}
	return allowed, nil
}

// BumpNotesAndDecks stamps last_update on every listed note and on the
// reflexive-transitive ancestor closure of their decks. Callers batch ids
// across a transaction and flush once.
func (t *ReviewTx) BumpNotesAndDecks(ctx context.Context, noteIDs []int64) error {
	if len(noteIDs) == 0 {
		return nil
	}
	if _, err := t.q.ExecContext(ctx, `
		UPDATE notes SET last_update=NOW() WHERE id = ANY($1)
	`, noteIDs); err != nil {
		return fmt.Errorf("bump notes: %w", err)
	}
	if _, err := t.q.ExecContext(ctx, `
		WITH RECURSIVE touched AS (
			SELECT DISTINCT d.id, d.parent
			FROM decks d
			JOIN notes n ON n.deck = d.id
			WHERE n.id = ANY($1)
			UNION
			SELECT d.id, d.parent FROM decks d JOIN touched t ON d.id = t.parent
		)
		UPDATE decks SET last_update=NOW() WHERE id IN (SELECT id FROM touched)
	`, noteIDs); err != nil {
		return fmt.Errorf("bump decks: %w", err)
	}
	return nil
}

// PendingCommits lists commits that still carry any unreviewed suggestion,
// restricted to decks the user can review, ordered by timestamp then id.
func (t *ReviewTx) PendingCommits(ctx context.Context, userID int64, isAdmin bool) ([]Commit, error) {
	rows, err := t.q.QueryContext(ctx, `
		WITH RECURSIVE accessible AS (
			SELECT id FROM decks WHERE owner=$1
			UNION
			SELECT deck AS id FROM maintainers WHERE user_id=$1
			UNION
			SELECT d.id FROM decks d JOIN accessible a ON d.parent = a.id
		)
		SELECT c.commit_id, c.deck, c.rationale, c.timestamp, c.user_id
		FROM commits c
		WHERE ($2 OR c.deck IN (SELECT id FROM accessible))
		  AND (
			EXISTS(SELECT 1 FROM fields f WHERE f.commit = c.commit_id AND NOT f.reviewed)
			OR EXISTS(SELECT 1 FROM tags tg WHERE tg.commit = c.commit_id AND NOT tg.reviewed)
			OR EXISTS(SELECT 1 FROM note_move_suggestions m WHERE m.commit = c.commit_id)
			OR EXISTS(SELECT 1 FROM card_deletion_suggestions cd WHERE cd.commit = c.commit_id)
		  )
		ORDER BY c.timestamp ASC, c.commit_id ASC
	`, userID, isAdmin)
	if err != nil {
		return nil, fmt.Errorf("list pending commits: %w", err)
	}
	defer rows.Close()

	items := make([]Commit, 0)
	for rows.Next() {
		var c Commit
		if err := rows.Scan(&c.CommitID, &c.Deck, &c.Rationale, &c.Timestamp, &c.UserID); err != nil {
			return nil, fmt.Errorf("scan pending commit: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending commits: %w", err)
	}
	return items, nil
}

func (t *ReviewTx) UserByID(ctx context.Context, userID int64) (User, error) {
	var u User
	err := t.q.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, admin, created_at FROM users WHERE id=$1
	`, userID).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Admin, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}
