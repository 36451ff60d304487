package review

import (
	"context"
	"errors"
	"testing"

	"ankicollab/api/internal/store"
)

func TestEffectiveFieldsOverlay(t *testing.T) {
	fx := newFixture()
	base := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(base, 0, "base front", true, nil)
	fx.fs.addField(base, 1, "base back", true, nil)
	sub := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(sub, 0, "own front", true, nil)
	fx.fs.addField(sub, 1, "own back", true, nil)

	tests := []struct {
		name       string
		subscribed []uint32
		wantFront  string
		wantBack   string
	}{
		{"all positions", nil, "base front", "base back"},
		{"back only", []uint32{1}, "own front", "base back"},
		{"none", []uint32{}, "own front", "own back"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx.fs.inheritance[sub] = store.NoteInheritance{
				SubscriberNote:   sub,
				BaseNote:         base,
				SubscribedFields: tt.subscribed,
				RemovedBaseTags:  []string{},
			}
			note, _ := fx.fs.NoteByID(context.Background(), sub)
			got, err := EffectiveFields(context.Background(), fx.fs, note)
			if err != nil {
				t.Fatalf("effective fields: %v", err)
			}
			if got[0] != tt.wantFront || got[1] != tt.wantBack {
				t.Fatalf("got %q/%q, want %q/%q", got[0], got[1], tt.wantFront, tt.wantBack)
			}
		})
	}
}

func TestSubscribeRejectsCycles(t *testing.T) {
	fx := newFixture()
	a := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(a, 0, "a", true, nil)
	b := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(b, 0, "b", true, nil)
	c := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(c, 0, "c", true, nil)

	if err := fx.e.Subscribe(context.Background(), fx.admin, a, a, nil); !errors.Is(err, ErrInheritanceCycle) {
		t.Fatalf("self-link err = %v", err)
	}
	if err := fx.e.Subscribe(context.Background(), fx.admin, b, a, nil); err != nil {
		t.Fatalf("b->a: %v", err)
	}
	if err := fx.e.Subscribe(context.Background(), fx.admin, c, b, nil); err != nil {
		t.Fatalf("c->b: %v", err)
	}
	if err := fx.e.Subscribe(context.Background(), fx.admin, a, c, nil); !errors.Is(err, ErrInheritanceCycle) {
		t.Fatalf("a->c should close a cycle, err = %v", err)
	}
}

func TestSubscribeRejectsSecondBase(t *testing.T) {
	fx := newFixture()
	a := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(a, 0, "a", true, nil)
	b := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(b, 0, "b", true, nil)
	c := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(c, 0, "c", true, nil)

	if err := fx.e.Subscribe(context.Background(), fx.admin, a, b, nil); err != nil {
		t.Fatalf("a->b: %v", err)
	}
	if err := fx.e.Subscribe(context.Background(), fx.admin, a, c, nil); err == nil {
		t.Fatal("second base accepted")
	}
}

func TestUnsubscribeRestoresLocalContent(t *testing.T) {
	fx := newFixture()
	base := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(base, 0, "base", true, nil)
	sub := fx.fs.addNote(fx.deck, fx.nt, true)
	fx.fs.addField(sub, 0, "own", true, nil)
	fx.fs.inheritance[sub] = store.NoteInheritance{SubscriberNote: sub, BaseNote: base, RemovedBaseTags: []string{}}

	if err := fx.e.Unsubscribe(context.Background(), fx.admin, sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	note, _ := fx.fs.NoteByID(context.Background(), sub)
	got, err := EffectiveFields(context.Background(), fx.fs, note)
	if err != nil {
		t.Fatalf("effective fields: %v", err)
	}
	if got[0] != "own" {
		t.Fatalf("field 0 = %q, want own content back", got[0])
	}
}
