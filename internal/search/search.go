// Package search finds decks and reviewed notes by free text.
package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultDeck ResultType = "deck"
	ResultNote ResultType = "note"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	DeckHash string     `json:"deck_hash"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterType     ResultType // empty = all types
	FilterDeckHash string
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// DeckRecord is the data we index for a deck.
type DeckRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FullPath  string `json:"full_path"`
	HumanHash string `json:"deck_hash"`
}

// NoteRecord is the data we index for a reviewed note. Body is the note's
// reviewed field contents joined by position, with markup stripped.
type NoteRecord struct {
	ID       string   `json:"id"`
	GUID     string   `json:"guid"`
	Body     string   `json:"body"`
	Tags     []string `json:"tags"`
	DeckHash string   `json:"deck_hash"`
}
