package export

import (
	"bytes"
	"html/template"
	"time"
)

// TemplateData holds data for card sheet rendering
type TemplateData struct {
	DeckName   string
	FullPath   string
	ExportedAt time.Time
	NoteCount  int
	Notes      []TemplateNote
}

// TemplateNote holds one note's rendered fields for the template
type TemplateNote struct {
	GUID   string
	Fields []TemplateField
	Tags   []string
}

// TemplateField pairs a field name with its sanitized HTML content
type TemplateField struct {
	Name    string
	Content template.HTML
}

var sheetTemplate = template.Must(template.New("sheet").Parse(cardSheetTemplate))

// RenderSheetHTML renders the card sheet template with provided data
func RenderSheetHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := sheetTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const cardSheetTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.DeckName}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .note { border: 1px solid #ccc; border-radius: 4px; padding: 1rem; margin: 1rem 0; page-break-inside: avoid; }
    .field-name { font-weight: bold; color: #444; margin-top: 0.5rem; }
    .tags { color: #666; font-size: 0.85em; margin-top: 0.75rem; }
  </style>
</head>
<body>
  <h1>{{.DeckName}}</h1>
  <div class="meta">{{.FullPath}} | {{.NoteCount}} notes | exported {{.ExportedAt.Format "Jan 2, 2006"}}</div>
  {{range .Notes}}
  <div class="note">
    {{range .Fields}}
    <div class="field-name">{{.Name}}</div>
    <div class="field-content">{{.Content}}</div>
    {{end}}
    {{if .Tags}}<div class="tags">Tags: {{range $i, $t := .Tags}}{{if $i}}, {{end}}{{$t}}{{end}}</div>{{end}}
  </div>
  {{end}}
</body>
</html>`
