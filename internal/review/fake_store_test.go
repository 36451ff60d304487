package review

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"ankicollab/api/internal/store"
)

// fakeStore is an in-memory Store with snapshot transactions: beginTx deep
// copies the state, Commit writes it back, Rollback discards it.
type fakeStore struct {
	users       map[int64]store.User
	decks       map[int64]store.Deck
	maintainers map[int64][]int64
	notetypes   map[int64][]store.NotetypeField
	notes       map[int64]store.Note
	fields      map[int64]store.Field
	tags        map[int64]store.Tag
	moves       map[int64]store.MoveSuggestion
	deletions   map[int64]int64 // note -> commit
	commits     map[int64]store.Commit
	inheritance map[int64]store.NoteInheritance // by subscriber
	events      []store.NoteEvent
	bumped      map[int64]int
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[int64]store.User),
		decks:       make(map[int64]store.Deck),
		maintainers: make(map[int64][]int64),
		notetypes:   make(map[int64][]store.NotetypeField),
		notes:       make(map[int64]store.Note),
		fields:      make(map[int64]store.Field),
		tags:        make(map[int64]store.Tag),
		moves:       make(map[int64]store.MoveSuggestion),
		deletions:   make(map[int64]int64),
		commits:     make(map[int64]store.Commit),
		inheritance: make(map[int64]store.NoteInheritance),
		bumped:      make(map[int64]int),
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) clone() *fakeStore {
	c := newFakeStore()
	c.nextID = s.nextID
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.decks {
		c.decks[k] = v
	}
	for k, v := range s.maintainers {
		c.maintainers[k] = append([]int64{}, v...)
	}
	for k, v := range s.notetypes {
		c.notetypes[k] = append([]store.NotetypeField{}, v...)
	}
	for k, v := range s.notes {
		c.notes[k] = v
	}
	for k, v := range s.fields {
		c.fields[k] = v
	}
	for k, v := range s.tags {
		c.tags[k] = v
	}
	for k, v := range s.moves {
		c.moves[k] = v
	}
	for k, v := range s.deletions {
		c.deletions[k] = v
	}
	for k, v := range s.commits {
		c.commits[k] = v
	}
	for k, v := range s.inheritance {
		ni := v
		if v.SubscribedFields != nil {
			ni.SubscribedFields = append([]uint32{}, v.SubscribedFields...)
		}
		ni.RemovedBaseTags = append([]string{}, v.RemovedBaseTags...)
		c.inheritance[k] = ni
	}
	c.events = append([]store.NoteEvent{}, s.events...)
	for k, v := range s.bumped {
		c.bumped[k] = v
	}
	return c
}

func (s *fakeStore) adopt(from *fakeStore) {
	*s = *from.clone()
}

type fakeTx struct {
	*fakeStore
	origin *fakeStore
	done   bool
}

func (t *fakeTx) Commit() error {
	if !t.done {
		t.origin.adopt(t.fakeStore)
		t.done = true
	}
	return nil
}

func (t *fakeTx) Rollback() error {
	t.done = true
	return nil
}

func (s *fakeStore) beginTx(ctx context.Context) (Tx, error) {
	return &fakeTx{fakeStore: s.clone(), origin: s}, nil
}

// --- seeding helpers ---

func (s *fakeStore) addUser(username string, admin bool) int64 {
	id := s.id()
	s.users[id] = store.User{ID: id, Username: username, Admin: admin, CreatedAt: time.Now()}
	return id
}

func (s *fakeStore) addDeck(parent *int64, owner int64, name string) int64 {
	id := s.id()
	path := name
	if parent != nil {
		path = s.decks[*parent].FullPath + "::" + name
	}
	s.decks[id] = store.Deck{ID: id, Parent: parent, Owner: owner, Name: name, FullPath: path, HumanHash: name + "-hash"}
	return id
}

func (s *fakeStore) addNotetype(names ...string) int64 {
	id := s.id()
	fields := make([]store.NotetypeField, 0, len(names))
	for i, name := range names {
		fields = append(fields, store.NotetypeField{ID: s.id(), Notetype: id, Position: uint32(i), Name: name})
	}
	s.notetypes[id] = fields
	return id
}

func (s *fakeStore) addNote(deck, notetype int64, reviewed bool) int64 {
	id := s.id()
	s.notes[id] = store.Note{ID: id, GUID: "guid", Deck: deck, Notetype: notetype, Reviewed: reviewed}
	return id
}

func (s *fakeStore) addField(note int64, position uint32, content string, reviewed bool, commit *int64) int64 {
	id := s.id()
	s.fields[id] = store.Field{ID: id, Note: note, Position: position, Content: content, Reviewed: reviewed, Commit: commit}
	return id
}

func (s *fakeStore) addTag(note int64, content string, reviewed, action bool, commit *int64) int64 {
	id := s.id()
	s.tags[id] = store.Tag{ID: id, Note: note, Content: content, Reviewed: reviewed, Action: action, Commit: commit}
	return id
}

func (s *fakeStore) addCommit(deck int64, ts time.Time) int64 {
	id := s.id()
	s.commits[id] = store.Commit{CommitID: id, Deck: deck, Timestamp: ts}
	return id
}

func (s *fakeStore) eventsFor(note int64) []store.NoteEvent {
	out := make([]store.NoteEvent, 0)
	for _, e := range s.events {
		if e.Note == note {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// --- Store implementation ---

func (s *fakeStore) NoteByID(ctx context.Context, noteID int64) (store.Note, error) {
	n, ok := s.notes[noteID]
	if !ok {
		return store.Note{}, sql.ErrNoRows
	}
	return n, nil
}

func (s *fakeStore) SetNoteDeck(ctx context.Context, noteID, deckID int64) error {
	n := s.notes[noteID]
	n.Deck = deckID
	s.notes[noteID] = n
	return nil
}

func (s *fakeStore) SetNoteDeleted(ctx context.Context, noteID int64) error {
	n := s.notes[noteID]
	n.Deleted = true
	s.notes[noteID] = n
	return nil
}

func (s *fakeStore) SetNoteReviewed(ctx context.Context, noteID int64) error {
	n := s.notes[noteID]
	n.Reviewed = true
	s.notes[noteID] = n
	return nil
}

func (s *fakeStore) DeleteNote(ctx context.Context, noteID int64) error {
	delete(s.notes, noteID)
	for id, f := range s.fields {
		if f.Note == noteID {
			delete(s.fields, id)
		}
	}
	for id, tg := range s.tags {
		if tg.Note == noteID {
			delete(s.tags, id)
		}
	}
	for id, m := range s.moves {
		if m.Note == noteID {
			delete(s.moves, id)
		}
	}
	delete(s.deletions, noteID)
	delete(s.inheritance, noteID)
	kept := s.events[:0]
	for _, e := range s.events {
		if e.Note != noteID {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return nil
}

func (s *fakeStore) DeckByID(ctx context.Context, deckID int64) (store.Deck, error) {
	d, ok := s.decks[deckID]
	if !ok {
		return store.Deck{}, sql.ErrNoRows
	}
	return d, nil
}

func (s *fakeStore) NotetypeFields(ctx context.Context, notetypeID int64) ([]store.NotetypeField, error) {
	return append([]store.NotetypeField{}, s.notetypes[notetypeID]...), nil
}

func (s *fakeStore) CommitByID(ctx context.Context, commitID int64) (store.Commit, error) {
	c, ok := s.commits[commitID]
	if !ok {
		return store.Commit{}, sql.ErrNoRows
	}
	return c, nil
}

func (s *fakeStore) UserByID(ctx context.Context, userID int64) (store.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *fakeStore) LogNoteEvent(ctx context.Context, in store.NoteEventInput) (int64, error) {
	n, ok := s.notes[in.Note]
	if !ok {
		return 0, sql.ErrNoRows
	}
	n.Version++
	s.notes[in.Note] = n
	id := s.id()
	s.events = append(s.events, store.NoteEvent{
		ID:        id,
		Note:      in.Note,
		Version:   n.Version,
		Kind:      in.Kind,
		ActorUser: in.ActorUser,
		Commit:    in.Commit,
		Approved:  in.Approved,
		OldValue:  in.OldValue,
		NewValue:  in.NewValue,
		CreatedAt: time.Now(),
	})
	return id, nil
}

func (s *fakeStore) NoteHasEvents(ctx context.Context, noteID int64) (bool, error) {
	for _, e := range s.events {
		if e.Note == noteID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) FieldByID(ctx context.Context, fieldID int64) (store.Field, error) {
	f, ok := s.fields[fieldID]
	if !ok {
		return store.Field{}, sql.ErrNoRows
	}
	return f, nil
}

func (s *fakeStore) fieldsWhere(keep func(store.Field) bool) []store.Field {
	out := make([]store.Field, 0)
	for _, f := range s.fields {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Note != out[j].Note {
			return out[i].Note < out[j].Note
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *fakeStore) FieldsForNote(ctx context.Context, noteID int64) ([]store.Field, error) {
	return s.fieldsWhere(func(f store.Field) bool { return f.Note == noteID }), nil
}

func (s *fakeStore) ReviewedFieldAt(ctx context.Context, noteID int64, position uint32) (*store.Field, error) {
	rows := s.fieldsWhere(func(f store.Field) bool {
		return f.Note == noteID && f.Position == position && f.Reviewed
	})
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *fakeStore) CountFieldsForNote(ctx context.Context, noteID int64) (int, error) {
	return len(s.fieldsWhere(func(f store.Field) bool { return f.Note == noteID })), nil
}

func (s *fakeStore) CountReviewedFieldsAt(ctx context.Context, noteID int64, position uint32) (int, error) {
	return len(s.fieldsWhere(func(f store.Field) bool {
		return f.Note == noteID && f.Position == position && f.Reviewed
	})), nil
}

func (s *fakeStore) HasNonEmptyReviewedFieldAtZero(ctx context.Context, noteID, excludeFieldID int64) (bool, error) {
	for _, f := range s.fields {
		if f.Note == noteID && f.Position == 0 && f.Reviewed && trimmed(f.Content) != "" {
			if excludeFieldID != 0 && f.ID == excludeFieldID {
				continue
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) DeleteField(ctx context.Context, fieldID int64) error {
	delete(s.fields, fieldID)
	return nil
}

func (s *fakeStore) DeleteReviewedFieldsAt(ctx context.Context, noteID int64, position uint32, exceptID int64) error {
	for id, f := range s.fields {
		if f.Note == noteID && f.Position == position && f.Reviewed && f.ID != exceptID {
			delete(s.fields, id)
		}
	}
	return nil
}

func (s *fakeStore) DeleteUnreviewedFieldsForNote(ctx context.Context, noteID int64) error {
	for id, f := range s.fields {
		if f.Note == noteID && !f.Reviewed {
			delete(s.fields, id)
		}
	}
	return nil
}

func (s *fakeStore) PromoteField(ctx context.Context, fieldID int64) error {
	f := s.fields[fieldID]
	f.Reviewed = true
	f.Commit = nil
	s.fields[fieldID] = f
	return nil
}

func (s *fakeStore) PromoteFieldsForNote(ctx context.Context, noteID int64) error {
	for id, f := range s.fields {
		if f.Note == noteID && !f.Reviewed {
			f.Reviewed = true
			f.Commit = nil
			s.fields[id] = f
		}
	}
	return nil
}

func (s *fakeStore) UpdateFieldContent(ctx context.Context, fieldID int64, content string) error {
	f := s.fields[fieldID]
	f.Content = content
	s.fields[fieldID] = f
	return nil
}

func (s *fakeStore) InsertFieldSuggestion(ctx context.Context, f store.Field) (int64, error) {
	f.ID = s.id()
	f.Reviewed = false
	s.fields[f.ID] = f
	return f.ID, nil
}

func (s *fakeStore) FieldSuggestionAt(ctx context.Context, noteID int64, position uint32, commitID int64) (*store.Field, error) {
	rows := s.fieldsWhere(func(f store.Field) bool {
		return f.Note == noteID && f.Position == position && !f.Reviewed && f.Commit != nil && *f.Commit == commitID
	})
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *fakeStore) FieldSuggestionsForNoteInCommit(ctx context.Context, noteID, commitID int64) ([]store.Field, error) {
	return s.fieldsWhere(func(f store.Field) bool {
		return f.Note == noteID && !f.Reviewed && f.Commit != nil && *f.Commit == commitID
	}), nil
}

func (s *fakeStore) UnreviewedFieldsForCommit(ctx context.Context, commitID int64) ([]store.Field, error) {
	return s.fieldsWhere(func(f store.Field) bool {
		return !f.Reviewed && f.Commit != nil && *f.Commit == commitID
	}), nil
}

func (s *fakeStore) HasSuggestionAtOtherCommit(ctx context.Context, noteID int64, position uint32, commitID int64) (bool, error) {
	for _, f := range s.fields {
		if f.Note == noteID && f.Position == position && !f.Reviewed {
			if f.Commit == nil || *f.Commit != commitID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *fakeStore) TagByID(ctx context.Context, tagID int64) (store.Tag, error) {
	tg, ok := s.tags[tagID]
	if !ok {
		return store.Tag{}, sql.ErrNoRows
	}
	return tg, nil
}

func (s *fakeStore) tagsWhere(keep func(store.Tag) bool) []store.Tag {
	out := make([]store.Tag, 0)
	for _, tg := range s.tags {
		if keep(tg) {
			out = append(out, tg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Note != out[j].Note {
			return out[i].Note < out[j].Note
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *fakeStore) TagsForNote(ctx context.Context, noteID int64) ([]store.Tag, error) {
	return s.tagsWhere(func(tg store.Tag) bool { return tg.Note == noteID }), nil
}

func (s *fakeStore) ReviewedTagAdd(ctx context.Context, noteID int64, content string) (*store.Tag, error) {
	rows := s.tagsWhere(func(tg store.Tag) bool {
		return tg.Note == noteID && tg.Content == content && tg.Reviewed && tg.Action
	})
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *fakeStore) ReviewedTagContents(ctx context.Context, noteID int64) ([]string, error) {
	rows := s.tagsWhere(func(tg store.Tag) bool {
		return tg.Note == noteID && tg.Reviewed && tg.Action
	})
	out := make([]string, 0, len(rows))
	for _, tg := range rows {
		out = append(out, tg.Content)
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) PromoteTag(ctx context.Context, tagID int64) error {
	tg := s.tags[tagID]
	tg.Reviewed = true
	tg.Commit = nil
	s.tags[tagID] = tg
	return nil
}

func (s *fakeStore) PromoteTagsForNote(ctx context.Context, noteID int64) error {
	for id, tg := range s.tags {
		if tg.Note == noteID && !tg.Reviewed {
			tg.Reviewed = true
			tg.Commit = nil
			s.tags[id] = tg
		}
	}
	return nil
}

func (s *fakeStore) DeleteTag(ctx context.Context, tagID int64) error {
	delete(s.tags, tagID)
	return nil
}

func (s *fakeStore) DeleteReviewedTagAdds(ctx context.Context, noteID int64, content string) error {
	for id, tg := range s.tags {
		if tg.Note == noteID && tg.Content == content && tg.Reviewed && tg.Action {
			delete(s.tags, id)
		}
	}
	return nil
}

func (s *fakeStore) DeleteUnreviewedTagsForNote(ctx context.Context, noteID int64) error {
	for id, tg := range s.tags {
		if tg.Note == noteID && !tg.Reviewed {
			delete(s.tags, id)
		}
	}
	return nil
}

func (s *fakeStore) TagSuggestionsForNoteInCommit(ctx context.Context, noteID, commitID int64) ([]store.Tag, error) {
	return s.tagsWhere(func(tg store.Tag) bool {
		return tg.Note == noteID && !tg.Reviewed && tg.Commit != nil && *tg.Commit == commitID
	}), nil
}

func (s *fakeStore) UnreviewedTagsForCommit(ctx context.Context, commitID int64) ([]store.Tag, error) {
	return s.tagsWhere(func(tg store.Tag) bool {
		return !tg.Reviewed && tg.Commit != nil && *tg.Commit == commitID
	}), nil
}

func (s *fakeStore) InheritanceForSubscriber(ctx context.Context, noteID int64) (*store.NoteInheritance, error) {
	ni, ok := s.inheritance[noteID]
	if !ok {
		return nil, nil
	}
	out := ni
	out.RemovedBaseTags = append([]string{}, ni.RemovedBaseTags...)
	return &out, nil
}

func (s *fakeStore) SubscriberInheritances(ctx context.Context, baseNoteID int64) ([]store.NoteInheritance, error) {
	out := make([]store.NoteInheritance, 0)
	for _, ni := range s.inheritance {
		if ni.BaseNote == baseNoteID {
			cp := ni
			cp.RemovedBaseTags = append([]string{}, ni.RemovedBaseTags...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscriberNote < out[j].SubscriberNote })
	return out, nil
}

func (s *fakeStore) SetRemovedBaseTags(ctx context.Context, subscriberNoteID int64, tags []string) error {
	ni := s.inheritance[subscriberNoteID]
	ni.RemovedBaseTags = append([]string{}, tags...)
	s.inheritance[subscriberNoteID] = ni
	return nil
}

func (s *fakeStore) InsertInheritance(ctx context.Context, ni store.NoteInheritance) error {
	s.inheritance[ni.SubscriberNote] = ni
	return nil
}

func (s *fakeStore) DeleteInheritance(ctx context.Context, subscriberNoteID int64) error {
	delete(s.inheritance, subscriberNoteID)
	return nil
}

func (s *fakeStore) MoveSuggestionByID(ctx context.Context, moveID int64) (store.MoveSuggestion, error) {
	m, ok := s.moves[moveID]
	if !ok {
		return store.MoveSuggestion{}, sql.ErrNoRows
	}
	return m, nil
}

func (s *fakeStore) movesWhere(keep func(store.MoveSuggestion) bool) []store.MoveSuggestion {
	out := make([]store.MoveSuggestion, 0)
	for _, m := range s.moves {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) MoveSuggestionsForNote(ctx context.Context, noteID int64) ([]store.MoveSuggestion, error) {
	return s.movesWhere(func(m store.MoveSuggestion) bool { return m.Note == noteID }), nil
}

func (s *fakeStore) MoveSuggestionsForCommit(ctx context.Context, commitID int64) ([]store.MoveSuggestion, error) {
	return s.movesWhere(func(m store.MoveSuggestion) bool { return m.Commit == commitID }), nil
}

func (s *fakeStore) DeleteMoveSuggestion(ctx context.Context, moveID int64) error {
	delete(s.moves, moveID)
	return nil
}

func (s *fakeStore) DeleteMoveSuggestionsMatching(ctx context.Context, noteID, targetDeck int64) error {
	for id, m := range s.moves {
		if m.Note == noteID && m.TargetDeck == targetDeck {
			delete(s.moves, id)
		}
	}
	return nil
}

func (s *fakeStore) DeleteMoveSuggestionsForNote(ctx context.Context, noteID int64) error {
	for id, m := range s.moves {
		if m.Note == noteID {
			delete(s.moves, id)
		}
	}
	return nil
}

func (s *fakeStore) DeleteMoveSuggestionsForCommit(ctx context.Context, commitID int64) error {
	for id, m := range s.moves {
		if m.Commit == commitID {
			delete(s.moves, id)
		}
	}
	return nil
}

func (s *fakeStore) DeletionSuggestionExists(ctx context.Context, noteID int64) (bool, error) {
	_, ok := s.deletions[noteID]
	return ok, nil
}

func (s *fakeStore) DeletionSuggestionsForCommit(ctx context.Context, commitID int64) ([]store.DeletionSuggestion, error) {
	out := make([]store.DeletionSuggestion, 0)
	for note, commit := range s.deletions {
		if commit == commitID {
			out = append(out, store.DeletionSuggestion{Note: note, Commit: commit})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Note < out[j].Note })
	return out, nil
}

func (s *fakeStore) DeleteDeletionSuggestionsForNote(ctx context.Context, noteID int64) error {
	delete(s.deletions, noteID)
	return nil
}

func (s *fakeStore) DeleteDeletionSuggestionsForCommit(ctx context.Context, commitID int64) error {
	for note, commit := range s.deletions {
		if commit == commitID {
			delete(s.deletions, note)
		}
	}
	return nil
}

func (s *fakeStore) CanUserAccessDeck(ctx context.Context, userID, deckID int64) (bool, error) {
	if u, ok := s.users[userID]; ok && u.Admin {
		return true, nil
	}
	cursor := &deckID
	for cursor != nil {
		d, ok := s.decks[*cursor]
		if !ok {
			return false, nil
		}
		if d.Owner == userID {
			return true, nil
		}
		for _, m := range s.maintainers[d.ID] {
			if m == userID {
				return true, nil
			}
		}
		cursor = d.Parent
	}
	return false, nil
}

func (s *fakeStore) BumpNotesAndDecks(ctx context.Context, noteIDs []int64) error {
	now := time.Now()
	for _, id := range noteIDs {
		n, ok := s.notes[id]
		if !ok {
			continue
		}
		n.LastUpdate = now
		s.notes[id] = n
		s.bumped[id]++
		cursor := &n.Deck
		for cursor != nil {
			d, ok := s.decks[*cursor]
			if !ok {
				break
			}
			d.LastUpdate = now
			s.decks[*cursor] = d
			cursor = d.Parent
		}
	}
	return nil
}

func (s *fakeStore) PendingCommits(ctx context.Context, userID int64, isAdmin bool) ([]store.Commit, error) {
	pending := make([]store.Commit, 0)
	for _, c := range s.commits {
		has := false
		for _, f := range s.fields {
			if !f.Reviewed && f.Commit != nil && *f.Commit == c.CommitID {
				has = true
			}
		}
		for _, tg := range s.tags {
			if !tg.Reviewed && tg.Commit != nil && *tg.Commit == c.CommitID {
				has = true
			}
		}
		for _, m := range s.moves {
			if m.Commit == c.CommitID {
				has = true
			}
		}
		for _, commit := range s.deletions {
			if commit == c.CommitID {
				has = true
			}
		}
		if !has {
			continue
		}
		if !isAdmin {
			ok, _ := s.CanUserAccessDeck(ctx, userID, c.Deck)
			if !ok {
				continue
			}
		}
		pending = append(pending, c)
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].Timestamp.Equal(pending[j].Timestamp) {
			return pending[i].Timestamp.Before(pending[j].Timestamp)
		}
		return pending[i].CommitID < pending[j].CommitID
	})
	return pending, nil
}
