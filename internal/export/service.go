package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html/template"
	"time"

	"ankicollab/api/internal/store"
)

// SheetStore defines the data access the exporter needs
type SheetStore interface {
	DeckByHumanHash(ctx context.Context, humanHash string) (store.Deck, error)
	ReviewedSheetNotes(ctx context.Context, deckID int64) ([]store.SheetNote, error)
	FieldNamesForNote(ctx context.Context, noteID int64) (map[uint32]string, error)
}

// Cleaner sanitizes field HTML before it is embedded in the sheet.
type Cleaner func(html string) string

// Service renders deck card sheets
type Service struct {
	store SheetStore
	clean Cleaner
}

// NewService creates a new export service
func NewService(store SheetStore, clean Cleaner) *Service {
	if clean == nil {
		clean = func(s string) string { return s }
	}
	return &Service{store: store, clean: clean}
}

// Export generates a card sheet in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	deck, err := s.store.DeckByHumanHash(ctx, req.DeckHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeckNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deck: %w", err)
	}

	notes, err := s.store.ReviewedSheetNotes(ctx, deck.ID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	data := TemplateData{
		DeckName:   deck.Name,
		FullPath:   deck.FullPath,
		ExportedAt: time.Now(),
		NoteCount:  len(notes),
		Notes:      make([]TemplateNote, 0, len(notes)),
	}

	for _, n := range notes {
		names, err := s.store.FieldNamesForNote(ctx, n.NoteID)
		if err != nil {
			return nil, fmt.Errorf("field names for note %d: %w", n.NoteID, err)
		}

		tn := TemplateNote{GUID: n.GUID}
		for pos, content := range n.Fields {
			name := names[uint32(pos)]
			if name == "" {
				name = fmt.Sprintf("Field %d", pos+1)
			}
			tn.Fields = append(tn.Fields, TemplateField{
				Name:    name,
				Content: template.HTML(s.clean(content)),
			})
		}
		if req.IncludeTags {
			tn.Tags = n.Tags
		}
		data.Notes = append(data.Notes, tn)
	}

	html, err := RenderSheetHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, deck.Name)
	case FormatDOCX:
		return exportDOCX(html, deck.Name)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
