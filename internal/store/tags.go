package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const tagColumns = `id, note, content, reviewed, action, commit`

func scanTag(row interface{ Scan(...any) error }) (Tag, error) {
	var tg Tag
	err := row.Scan(&tg.ID, &tg.Note, &tg.Content, &tg.Reviewed, &tg.Action, &tg.Commit)
	return tg, err
}

func (t *ReviewTx) TagByID(ctx context.Context, tagID int64) (Tag, error) {
	return scanTag(t.q.QueryRowContext(ctx, `
		SELECT `+tagColumns+` FROM tags WHERE id=$1
	`, tagID))
}

func (t *ReviewTx) TagsForNote(ctx context.Context, noteID int64) ([]Tag, error) {
	return t.queryTags(ctx, `
		SELECT `+tagColumns+` FROM tags WHERE note=$1 ORDER BY content ASC, id ASC
	`, noteID)
}

// ReviewedTagAdd returns the accepted "add" row for a content, or nil.
func (t *ReviewTx) ReviewedTagAdd(ctx context.Context, noteID int64, content string) (*Tag, error) {
	tg, err := scanTag(t.q.QueryRowContext(ctx, `
		SELECT `+tagColumns+` FROM tags
		WHERE note=$1 AND content=$2 AND reviewed AND action
		LIMIT 1
	`, noteID, content))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reviewed tag add: %w", err)
	}
	return &tg, nil
}

func (t *ReviewTx) ReviewedTagContents(ctx context.Context, noteID int64) ([]string, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT content FROM tags WHERE note=$1 AND reviewed AND action ORDER BY content ASC
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list reviewed tags: %w", err)
	}
	defer rows.Close()

	items := make([]string, 0)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan tag content: %w", err)
		}
		items = append(items, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag contents: %w", err)
	}
	return items, nil
}

func (t *ReviewTx) PromoteTag(ctx context.Context, tagID int64) error {
	_, err := t.q.ExecContext(ctx, `UPDATE tags SET reviewed=TRUE, commit=NULL WHERE id=$1`, tagID)
	if err != nil {
		return fmt.Errorf("promote tag: %w", err)
	}
	return nil
}

func (t *ReviewTx) PromoteTagsForNote(ctx context.Context, noteID int64) error {
	_, err := t.q.ExecContext(ctx, `
		UPDATE tags SET reviewed=TRUE, commit=NULL WHERE note=$1 AND NOT reviewed
	`, noteID)
	if err != nil {
		return fmt.Errorf("promote note tags: %w", err)
	}
	return nil
}

func (t *ReviewTx) DeleteTag(ctx context.Context, tagID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM tags WHERE id=$1`, tagID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

func (t *ReviewTx) DeleteReviewedTagAdds(ctx context.Context, noteID int64, content string) error {
	_, err := t.q.ExecContext(ctx, `
		DELETE FROM tags WHERE note=$1 AND content=$2 AND reviewed AND action
	`, noteID, content)
	if err != nil {
		return fmt.Errorf("delete reviewed tag adds: %w", err)
	}
	return nil
}

func (t *ReviewTx) DeleteUnreviewedTagsForNote(ctx context.Context, noteID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM tags WHERE note=$1 AND NOT reviewed`, noteID)
	if err != nil {
		return fmt.Errorf("delete unreviewed tags: %w", err)
	}
	return nil
}

func (t *ReviewTx) TagSuggestionsForNoteInCommit(ctx context.Context, noteID, commitID int64) ([]Tag, error) {
	return t.queryTags(ctx, `
		SELECT `+tagColumns+` FROM tags
		WHERE note=$1 AND NOT reviewed AND commit=$2
		ORDER BY id ASC
	`, noteID, commitID)
}

func (t *ReviewTx) UnreviewedTagsForCommit(ctx context.Context, commitID int64) ([]Tag, error) {
	return t.queryTags(ctx, `
		SELECT `+tagColumns+` FROM tags
		WHERE commit=$1 AND NOT reviewed
		ORDER BY note ASC, id ASC
	`, commitID)
}

func (t *ReviewTx) queryTags(ctx context.Context, query string, args ...any) ([]Tag, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	items := make([]Tag, 0)
	for rows.Next() {
		tg, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		items = append(items, tg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return items, nil
}

// --- inheritance ---

func scanInheritance(row interface{ Scan(...any) error }) (NoteInheritance, error) {
	var ni NoteInheritance
	var subscribed, removed []byte
	if err := row.Scan(&ni.SubscriberNote, &ni.BaseNote, &subscribed, &removed); err != nil {
		return NoteInheritance{}, err
	}
	decodeJSONArray(subscribed, &ni.SubscribedFields)
	decodeJSONArray(removed, &ni.RemovedBaseTags)
	if ni.RemovedBaseTags == nil {
		ni.RemovedBaseTags = []string{}
	}
	return ni, nil
}

// InheritanceForSubscriber returns the subscriber's link to its base, or nil
// when the note is standalone.
func (t *ReviewTx) InheritanceForSubscriber(ctx context.Context, noteID int64) (*NoteInheritance, error) {
	ni, err := scanInheritance(t.q.QueryRowContext(ctx, `
		SELECT subscriber_note, base_note, subscribed_fields, removed_base_tags
		FROM note_inheritance
		WHERE subscriber_note=$1
	`, noteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inheritance for subscriber: %w", err)
	}
	return &ni, nil
}

func (t *ReviewTx) SubscriberInheritances(ctx context.Context, baseNoteID int64) ([]NoteInheritance, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT subscriber_note, base_note, subscribed_fields, removed_base_tags
		FROM note_inheritance
		WHERE base_note=$1
		ORDER BY subscriber_note ASC
	`, baseNoteID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	items := make([]NoteInheritance, 0)
	for rows.Next() {
		ni, err := scanInheritance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inheritance: %w", err)
		}
		items = append(items, ni)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return items, nil
}

func (t *ReviewTx) SetRemovedBaseTags(ctx context.Context, subscriberNoteID int64, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal removed base tags: %w", err)
	}
	_, err = t.q.ExecContext(ctx, `
		UPDATE note_inheritance SET removed_base_tags=$2::jsonb WHERE subscriber_note=$1
	`, subscriberNoteID, string(encoded))
	if err != nil {
		return fmt.Errorf("set removed base tags: %w", err)
	}
	return nil
}

func (t *ReviewTx) InsertInheritance(ctx context.Context, ni NoteInheritance) error {
	var subscribed any
	if ni.SubscribedFields != nil {
		encoded, err := json.Marshal(ni.SubscribedFields)
		if err != nil {
			return fmt.Errorf("marshal subscribed fields: %w", err)
		}
		subscribed = string(encoded)
	}
	removed, err := json.Marshal(ni.RemovedBaseTags)
	if err != nil {
		return fmt.Errorf("marshal removed base tags: %w", err)
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO note_inheritance (subscriber_note, base_note, subscribed_fields, removed_base_tags)
		VALUES ($1, $2, $3::jsonb, $4::jsonb)
	`, ni.SubscriberNote, ni.BaseNote, subscribed, string(removed))
	if err != nil {
		return fmt.Errorf("insert inheritance: %w", err)
	}
	return nil
}

func (t *ReviewTx) DeleteInheritance(ctx context.Context, subscriberNoteID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM note_inheritance WHERE subscriber_note=$1`, subscriberNoteID)
	if err != nil {
		return fmt.Errorf("delete inheritance: %w", err)
	}
	return nil
}
