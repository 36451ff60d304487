package review

import (
	"errors"
	"fmt"
)

// Sentinel errors for the flat failure cases. Callers match with errors.Is.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrCommitNotFound      = errors.New("commit not found")
	ErrCommitDeckNotFound  = errors.New("commit deck not found")
	ErrInvalidNote         = errors.New("invalid note")
	ErrNoNotesAffected     = errors.New("no notes affected")
	ErrNoNotetypesAffected = errors.New("no notetypes affected")
	ErrUserNotFound        = errors.New("user not found")
	ErrAlreadyMaintainer   = errors.New("user is already a maintainer")
	ErrTagAlreadyExists    = errors.New("tag already exists")
)

// NotFoundContext identifies the operation that observed a vanished note.
type NotFoundContext int

const (
	ContextTagApprove NotFoundContext = iota
	ContextTagDeny
	ContextFieldApprove
	ContextFieldDeny
	ContextMarkDeleted
	ContextApproveCard
	ContextMoveRequest
	ContextLogEvent
	ContextFieldUpdate
	ContextDeleteCard
	ContextNoteView
)

func (c NotFoundContext) String() string {
	switch c {
	case ContextTagApprove:
		return "tag approve"
	case ContextTagDeny:
		return "tag deny"
	case ContextFieldApprove:
		return "field approve"
	case ContextFieldDeny:
		return "field deny"
	case ContextMarkDeleted:
		return "mark deleted"
	case ContextApproveCard:
		return "approve card"
	case ContextMoveRequest:
		return "move request"
	case ContextLogEvent:
		return "log event"
	case ContextFieldUpdate:
		return "field update"
	case ContextDeleteCard:
		return "delete card"
	case ContextNoteView:
		return "note view"
	default:
		return "unknown"
	}
}

// NoteNotFoundError reports a note that vanished between read and write,
// tagged with the operation that noticed.
type NoteNotFoundError struct {
	Context NotFoundContext
}

func (e *NoteNotFoundError) Error() string {
	return fmt.Sprintf("note not found (%s)", e.Context)
}

func noteNotFound(c NotFoundContext) error {
	return &NoteNotFoundError{Context: c}
}

// AmbiguousFieldsError reports two field rows sharing a position at
// approve-card time.
type AmbiguousFieldsError struct {
	Note int64
}

func (e *AmbiguousFieldsError) Error() string {
	return fmt.Sprintf("note %d has ambiguous fields", e.Note)
}

// SerializationError wraps a JSON payload construction failure.
type SerializationError struct {
	Cause error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize event payload: %v", e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }
