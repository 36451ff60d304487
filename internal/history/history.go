package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"ankicollab/api/internal/store"
)

const maxNoteEvents = 100

// EventSource is the read surface the projector needs; the postgres store
// satisfies it.
type EventSource interface {
	NoteEvents(ctx context.Context, noteID int64, limit int) ([]store.NoteEvent, error)
	EventsForCommit(ctx context.Context, commitID int64) ([]store.NoteEvent, error)
	UsernamesByIDs(ctx context.Context, userIDs []int64) (map[int64]string, error)
	FieldNamesForNote(ctx context.Context, noteID int64) (map[uint32]string, error)
}

// Projector turns raw note events into the history views.
type Projector struct {
	src   EventSource
	clean func(string) string
	dmp   *diffmatchpatch.DiffMatchPatch
}

func NewProjector(src EventSource, clean func(string) string) *Projector {
	if clean == nil {
		clean = func(s string) string { return s }
	}
	return &Projector{src: src, clean: clean, dmp: diffmatchpatch.New()}
}

// EventView is one rendered history entry.
type EventView struct {
	ID         int64     `json:"id"`
	Version    int64     `json:"version"`
	Kind       string    `json:"kind"`
	Actor      string    `json:"actor,omitempty"`
	FieldName  string    `json:"field_name,omitempty"`
	OldSummary string    `json:"old_summary,omitempty"`
	NewSummary string    `json:"new_summary,omitempty"`
	Diff       string    `json:"diff,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventGroup collects consecutive events sharing a commit. The effect
// events set the flags and are not listed among the members.
type EventGroup struct {
	Commit   *int64      `json:"commit,omitempty"`
	Approved bool        `json:"approved"`
	Denied   bool        `json:"denied"`
	Events   []EventView `json:"events"`
}

// NoteHistory is the note timeline, newest first, capped at 100 events.
type NoteHistory struct {
	NoteID int64        `json:"note_id"`
	Groups []EventGroup `json:"groups"`
	Actors []string     `json:"actors"`
}

func (p *Projector) FetchNoteHistory(ctx context.Context, noteID int64) (NoteHistory, error) {
	events, err := p.src.NoteEvents(ctx, noteID, maxNoteEvents)
	if err != nil {
		return NoteHistory{}, err
	}
	fieldNames, err := p.src.FieldNamesForNote(ctx, noteID)
	if err != nil {
		return NoteHistory{}, err
	}
	actors, byID, err := p.resolveActors(ctx, events)
	if err != nil {
		return NoteHistory{}, err
	}

	out := NoteHistory{NoteID: noteID, Actors: actors}
	var group *EventGroup
	for _, ev := range events {
		if group == nil || !sameCommit(group.Commit, ev.Commit) {
			out.Groups = append(out.Groups, EventGroup{Commit: ev.Commit})
			group = &out.Groups[len(out.Groups)-1]
		}
		switch ev.Kind {
		case store.EventCommitApprovedEffect:
			group.Approved = true
			continue
		case store.EventCommitDeniedEffect:
			group.Denied = true
			continue
		}
		group.Events = append(group.Events, p.render(ev, fieldNames, byID))
	}

	// Legacy import path: a group of nothing but creation snapshots counts
	// as approved even without an effect event.
	for i := range out.Groups {
		g := &out.Groups[i]
		if g.Approved || g.Denied || len(g.Events) == 0 {
			continue
		}
		onlyCreated := true
		for _, ev := range g.Events {
			if ev.Kind != store.EventNoteCreated.String() {
				onlyCreated = false
				break
			}
		}
		if onlyCreated {
			g.Approved = true
		}
	}
	return out, nil
}

func sameCommit(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (p *Projector) resolveActors(ctx context.Context, events []store.NoteEvent) ([]string, map[int64]string, error) {
	idSet := make(map[int64]struct{})
	for _, ev := range events {
		if ev.ActorUser != nil {
			idSet[*ev.ActorUser] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	byID, err := p.src.UsernamesByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(byID))
	for _, name := range byID {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, byID, nil
}

func (p *Projector) render(ev store.NoteEvent, fieldNames map[uint32]string, actors map[int64]string) EventView {
	view := EventView{
		ID:        ev.ID,
		Version:   ev.Version,
		Kind:      ev.Kind.String(),
		CreatedAt: ev.CreatedAt,
	}
	if ev.ActorUser != nil {
		view.Actor = actors[*ev.ActorUser]
	}
	view.OldSummary = summarize(ev.Kind, ev.OldValue, true)
	view.NewSummary = summarize(ev.Kind, ev.NewValue, false)

	switch ev.Kind {
	case store.EventFieldAdded, store.EventFieldUpdated, store.EventFieldRemoved:
		if pos, ok := payloadPosition(ev.OldValue, ev.NewValue); ok {
			view.FieldName = fieldNames[pos]
		}
	}
	if ev.Kind == store.EventFieldUpdated {
		view.Diff = p.htmlDiff(payloadContent(ev.OldValue), payloadContent(ev.NewValue))
	}
	return view
}

// htmlDiff renders an insert/delete marked diff over sanitized content.
func (p *Projector) htmlDiff(old, updated string) string {
	diffs := p.dmp.DiffMain(p.clean(old), p.clean(updated), false)
	p.dmp.DiffCleanupSemantic(diffs)
	return p.dmp.DiffPrettyHtml(diffs)
}

type genericPayload struct {
	Position      *uint32 `json:"position"`
	Content       *string `json:"content"`
	From          *string `json:"from"`
	To            *string `json:"to"`
	DeniedContent *string `json:"denied_content"`
	TargetDeck    *int64  `json:"target_deck"`
}

func decodePayload(raw []byte) genericPayload {
	var gp genericPayload
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &gp)
	}
	return gp
}

func payloadPosition(old, newVal []byte) (uint32, bool) {
	for _, raw := range [][]byte{newVal, old} {
		if gp := decodePayload(raw); gp.Position != nil {
			return *gp.Position, true
		}
	}
	return 0, false
}

func payloadContent(raw []byte) string {
	if gp := decodePayload(raw); gp.Content != nil {
		return *gp.Content
	}
	return ""
}

// summarize renders the short per-side string shown in the timeline.
func summarize(kind store.EventKind, raw []byte, oldSide bool) string {
	gp := decodePayload(raw)
	switch kind {
	case store.EventFieldAdded, store.EventFieldUpdated, store.EventFieldRemoved,
		store.EventTagAdded, store.EventTagRemoved, store.EventTagHidden, store.EventTagUnhidden:
		if gp.Content != nil {
			return *gp.Content
		}
		return ""
	case store.EventNoteMoved:
		if oldSide && gp.From != nil {
			return fmt.Sprintf("from deck %s", *gp.From)
		}
		if !oldSide && gp.To != nil {
			return fmt.Sprintf("to deck %s", *gp.To)
		}
		return ""
	case store.EventNoteDeleted:
		if oldSide {
			return ""
		}
		return "Note deleted"
	case store.EventNoteCreated:
		if oldSide {
			return ""
		}
		return "Note created"
	case store.EventSuggestionDenied, store.EventFieldChangeDenied, store.EventTagChangeDenied:
		if oldSide {
			return ""
		}
		if gp.DeniedContent != nil {
			return fmt.Sprintf("Suggestion denied: %s", *gp.DeniedContent)
		}
		return "Suggestion denied"
	default:
		return ""
	}
}

// CommitHistoryNote aggregates one note's share of a commit.
type CommitHistoryNote struct {
	NoteID        int64       `json:"note_id"`
	FieldsAdded   int         `json:"fields_added"`
	FieldsUpdated int         `json:"fields_updated"`
	FieldsRemoved int         `json:"fields_removed"`
	TagsAdded     int         `json:"tags_added"`
	TagsRemoved   int         `json:"tags_removed"`
	Moved         int         `json:"moved"`
	Deleted       int         `json:"deleted"`
	Events        []EventView `json:"events"`
}

func (p *Projector) FetchCommitHistory(ctx context.Context, commitID int64) ([]CommitHistoryNote, error) {
	events, err := p.src.EventsForCommit(ctx, commitID)
	if err != nil {
		return nil, err
	}
	_, byID, err := p.resolveActors(ctx, events)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]map[uint32]string)
	byNote := make(map[int64]*CommitHistoryNote)
	order := make([]int64, 0)
	for _, ev := range events {
		agg, ok := byNote[ev.Note]
		if !ok {
			agg = &CommitHistoryNote{NoteID: ev.Note}
			byNote[ev.Note] = agg
			order = append(order, ev.Note)
			fn, err := p.src.FieldNamesForNote(ctx, ev.Note)
			if err != nil {
				return nil, err
			}
			names[ev.Note] = fn
		}
		switch ev.Kind {
		case store.EventFieldAdded:
			agg.FieldsAdded++
		case store.EventFieldUpdated:
			agg.FieldsUpdated++
		case store.EventFieldRemoved:
			agg.FieldsRemoved++
		case store.EventTagAdded:
			agg.TagsAdded++
		case store.EventTagRemoved:
			agg.TagsRemoved++
		case store.EventNoteMoved:
			agg.Moved++
		case store.EventNoteDeleted:
			agg.Deleted++
		}
		agg.Events = append(agg.Events, p.render(ev, names[ev.Note], byID))
	}

	out := make([]CommitHistoryNote, 0, len(order))
	for _, id := range order {
		out = append(out, *byNote[id])
	}
	return out, nil
}
