package store

// EventKind enumerates the closed set of note history event kinds.
// Values are persisted in note_events.kind; never renumber.
type EventKind int16

const (
	EventNoteCreated EventKind = iota
	EventFieldAdded
	EventFieldUpdated
	EventFieldRemoved
	EventTagAdded
	EventTagRemoved
	EventTagHidden
	EventTagUnhidden
	EventNoteMoved
	EventNoteDeleted
	EventCommitApprovedEffect
	EventCommitDeniedEffect
	EventSuggestionDenied
	EventFieldChangeDenied
	EventTagChangeDenied
)

func (k EventKind) String() string {
	switch k {
	case EventNoteCreated:
		return "note_created"
	case EventFieldAdded:
		return "field_added"
	case EventFieldUpdated:
		return "field_updated"
	case EventFieldRemoved:
		return "field_removed"
	case EventTagAdded:
		return "tag_added"
	case EventTagRemoved:
		return "tag_removed"
	case EventTagHidden:
		return "tag_hidden"
	case EventTagUnhidden:
		return "tag_unhidden"
	case EventNoteMoved:
		return "note_moved"
	case EventNoteDeleted:
		return "note_deleted"
	case EventCommitApprovedEffect:
		return "commit_approved_effect"
	case EventCommitDeniedEffect:
		return "commit_denied_effect"
	case EventSuggestionDenied:
		return "suggestion_denied"
	case EventFieldChangeDenied:
		return "field_change_denied"
	case EventTagChangeDenied:
		return "tag_change_denied"
	default:
		return "unknown"
	}
}

// Rationale is the commit rationale enum, persisted as an integer 0..10.
type Rationale int

const (
	RationaleNone Rationale = iota
	RationaleDeckCreation
	RationaleUpdatedContent
	RationaleNewContent
	RationaleContentError
	RationaleSpellingGrammar
	RationaleNewCard
	RationaleUpdatedTags
	RationaleNewTags
	RationaleBulkSuggestion
	RationaleOther
)

func (r Rationale) String() string {
	switch r {
	case RationaleNone:
		return "None"
	case RationaleDeckCreation:
		return "Deck Creation"
	case RationaleUpdatedContent:
		return "Updated content"
	case RationaleNewContent:
		return "New content"
	case RationaleContentError:
		return "Content error"
	case RationaleSpellingGrammar:
		return "Spelling/Grammar"
	case RationaleNewCard:
		return "New card"
	case RationaleUpdatedTags:
		return "Updated Tags"
	case RationaleNewTags:
		return "New Tags"
	case RationaleBulkSuggestion:
		return "Bulk Suggestion"
	default:
		return "Unknown Rationale"
	}
}
