package store

import "time"

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Admin        bool
	CreatedAt    time.Time
}

// Deck rows form a forest via Parent. FullPath is the materialized
// "::"-joined name chain; LastUpdate is derived by the timestamp bubbler.
type Deck struct {
	ID         int64
	Parent     *int64
	Owner      int64
	Name       string
	FullPath   string
	HumanHash  string
	Private    bool
	LastUpdate time.Time
}

type Notetype struct {
	ID        int64
	Owner     int64
	CSS       string
	Templates string
}

// NotetypeField positions are dense from 0; Name is unique per notetype.
type NotetypeField struct {
	ID        int64
	Notetype  int64
	Position  uint32
	Name      string
	Protected bool
}

type Note struct {
	ID         int64
	GUID       string
	Deck       int64
	Notetype   int64
	Reviewed   bool
	Deleted    bool
	Version    int64
	LastUpdate time.Time
}

// Field rows with Reviewed=false are suggestions belonging to a commit.
type Field struct {
	ID        int64
	Note      int64
	Position  uint32
	Content   string
	Reviewed  bool
	Commit    *int64
	CreatorIP *string
}

// Tag Action=true means "add this tag", false means "remove this tag".
type Tag struct {
	ID       int64
	Note     int64
	Content  string
	Reviewed bool
	Action   bool
	Commit   *int64
}

type MoveSuggestion struct {
	ID         int64
	Note       int64
	TargetDeck int64
	Commit     int64
}

type DeletionSuggestion struct {
	Note   int64
	Commit int64
}

type Commit struct {
	CommitID  int64
	Deck      int64
	Rationale Rationale
	Timestamp time.Time
	UserID    *int64
}

// NoteInheritance links a subscriber note to its base note.
// SubscribedFields nil means "all positions".
type NoteInheritance struct {
	SubscriberNote  int64
	BaseNote        int64
	SubscribedFields []uint32
	RemovedBaseTags []string
}

// SubscribesTo reports whether the given position is overlaid from the base.
func (ni NoteInheritance) SubscribesTo(position uint32) bool {
	if ni.SubscribedFields == nil {
		return true
	}
	for _, p := range ni.SubscribedFields {
		if p == position {
			return true
		}
	}
	return false
}

// NoteEvent is an append-only history row. Version equals the note's
// version after the event; no event row is ever deleted.
type NoteEvent struct {
	ID        int64
	Note      int64
	Version   int64
	Kind      EventKind
	ActorUser *int64
	Commit    *int64
	Approved  *bool
	OldValue  []byte
	NewValue  []byte
	CreatedAt time.Time
}

// NoteEventInput is the append request; version allocation happens in the store.
type NoteEventInput struct {
	Note      int64
	Kind      EventKind
	ActorUser *int64
	Commit    *int64
	Approved  *bool
	OldValue  []byte
	NewValue  []byte
}

type MediaReference struct {
	Note     int64
	FileName string
	MediaID  *int64
}

// NoteMergeResult is one entry of the bulk-merge result list.
type NoteMergeResult struct {
	NoteID  int64  `json:"note_id"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}
