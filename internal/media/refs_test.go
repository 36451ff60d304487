package media

import (
	"context"
	"reflect"
	"testing"
)

func TestExtractReferences(t *testing.T) {
	tests := []struct {
		name     string
		contents []string
		want     []string
	}{
		{
			"img src",
			[]string{`What is this? <img src="heart-diagram.png" alt="heart">`},
			[]string{"heart-diagram.png"},
		},
		{
			"sound tag",
			[]string{"Listen: [sound:pronunciation.mp3]"},
			[]string{"pronunciation.mp3"},
		},
		{
			"mixed and deduplicated",
			[]string{
				`<img src="a.png"> [sound:b.mp3]`,
				`<img src='a.png'> more text`,
			},
			[]string{"a.png", "b.mp3"},
		},
		{
			"external urls skipped",
			[]string{`<img src="https://example.com/x.png"> <img src="//cdn.test/y.png"> <img src="data:image/png;base64,AAAA">`},
			[]string{},
		},
		{
			"no references",
			[]string{"plain text", "<b>bold</b>"},
			[]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractReferences(tt.contents)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ExtractReferences = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeRefStore struct {
	contents map[int64][]string
	replaced map[int64][]string
}

func (f *fakeRefStore) ReviewedFieldContents(_ context.Context, noteID int64) ([]string, error) {
	return f.contents[noteID], nil
}

func (f *fakeRefStore) ReplaceMediaReferences(_ context.Context, noteID int64, fileNames []string) error {
	if f.replaced == nil {
		f.replaced = make(map[int64][]string)
	}
	f.replaced[noteID] = fileNames
	return nil
}

func TestRefreshNote(t *testing.T) {
	fs := &fakeRefStore{contents: map[int64][]string{
		7: {`<img src="x.png">`, "[sound:y.mp3]"},
	}}
	r := NewRefresher(fs)

	n, err := r.RefreshNote(context.Background(), 7)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	if want := []string{"x.png", "y.mp3"}; !reflect.DeepEqual(fs.replaced[7], want) {
		t.Fatalf("replaced = %v, want %v", fs.replaced[7], want)
	}
}

func TestRefreshNoteClearsStaleReferences(t *testing.T) {
	fs := &fakeRefStore{contents: map[int64][]string{9: {"no media here"}}}
	r := NewRefresher(fs)

	n, err := r.RefreshNote(context.Background(), 9)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}
	replaced, ok := fs.replaced[9]
	if !ok {
		t.Fatal("ReplaceMediaReferences not called for note without media")
	}
	if len(replaced) != 0 {
		t.Fatalf("replaced = %v, want empty", replaced)
	}
}
