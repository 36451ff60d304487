// Package media tracks the binary files referenced by reviewed note fields
// and serves them from blob storage.
package media

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	srcPattern   = regexp.MustCompile(`(?i)\bsrc\s*=\s*(?:"([^"]+)"|'([^']+)')`)
	soundPattern = regexp.MustCompile(`\[sound:([^\[\]]+)\]`)
)

// ExtractReferences returns the distinct local file names referenced by the
// given field contents, sorted. Absolute URLs and data URLs are not media
// references and are skipped.
func ExtractReferences(contents []string) []string {
	seen := make(map[string]struct{})
	for _, content := range contents {
		for _, m := range srcPattern.FindAllStringSubmatch(content, -1) {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			addReference(seen, name)
		}
		for _, m := range soundPattern.FindAllStringSubmatch(content, -1) {
			addReference(seen, m[1])
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func addReference(seen map[string]struct{}, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if strings.Contains(name, "://") || strings.HasPrefix(name, "data:") || strings.HasPrefix(name, "//") {
		return
	}
	seen[name] = struct{}{}
}

// RefStore is the storage surface reference refresh needs.
type RefStore interface {
	ReviewedFieldContents(ctx context.Context, noteID int64) ([]string, error)
	ReplaceMediaReferences(ctx context.Context, noteID int64, fileNames []string) error
}

// Refresher re-extracts media references after reviewed content changes.
type Refresher struct {
	store RefStore
}

func NewRefresher(store RefStore) *Refresher {
	return &Refresher{store: store}
}

// RefreshNote rebuilds one note's reference rows from its current reviewed
// fields and returns how many files it now references.
func (r *Refresher) RefreshNote(ctx context.Context, noteID int64) (int, error) {
	contents, err := r.store.ReviewedFieldContents(ctx, noteID)
	if err != nil {
		return 0, fmt.Errorf("load reviewed fields for note %d: %w", noteID, err)
	}
	names := ExtractReferences(contents)
	if err := r.store.ReplaceMediaReferences(ctx, noteID, names); err != nil {
		return 0, fmt.Errorf("replace references for note %d: %w", noteID, err)
	}
	return len(names), nil
}

// RefreshNotes refreshes each note in turn. The first error stops the batch
// so a broken store does not burn through the whole queue.
func (r *Refresher) RefreshNotes(ctx context.Context, noteIDs []int64) error {
	for _, id := range noteIDs {
		if _, err := r.RefreshNote(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
