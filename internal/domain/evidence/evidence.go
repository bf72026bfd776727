package evidence

import (
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/evidex/internal/domain/document"
)

// Item is one fused evidence entry: a canonical document plus its final rank
// and score, carrying the duplicates it absorbed (immutable value object).
type Item struct {
	doc        document.Document
	rank       int
	finalScore float64
	duplicates []string
}

// NewItem validates and creates an evidence Item.
// Rank is 1-based; the final score must be in [0,1].
func NewItem(doc document.Document, rank int, finalScore float64, duplicates []string) (Item, error) {
	if doc.EngineID() == "" {
		return Item{}, fmt.Errorf("evidence requires a document with a source engine")
	}
	if rank < 1 {
		return Item{}, fmt.Errorf("rank must be 1-based, got %d", rank)
	}
	if finalScore < 0 || finalScore > 1 {
		return Item{}, fmt.Errorf("final score must be between 0 and 1, got %g", finalScore)
	}
	dups := append([]string(nil), duplicates...)
	sort.Strings(dups)
	return Item{doc: doc, rank: rank, finalScore: finalScore, duplicates: dups}, nil
}

// Reconstruct creates an Item without validation (storage hydration).
func Reconstruct(doc document.Document, rank int, finalScore float64, duplicates []string) Item {
	return Item{doc: doc, rank: rank, finalScore: finalScore, duplicates: duplicates}
}

// Document returns the canonical document.
func (i *Item) Document() document.Document { return i.doc }

// Rank returns the 1-based final rank.
func (i *Item) Rank() int { return i.rank }

// FinalScore returns the fused relevance score in [0,1].
func (i *Item) FinalScore() float64 { return i.finalScore }

// Duplicates returns the canonical ids of absorbed duplicate documents (sorted).
func (i *Item) Duplicates() []string { return i.duplicates }

// Citation is the client-facing reference derived from an evidence item.
type Citation struct {
	Vertical   string    `json:"vertical"`
	DocID      string    `json:"doc_id"`
	Title      string    `json:"title,omitempty"`
	Locator    string    `json:"locator,omitempty"`
	SourceURI  string    `json:"source_uri,omitempty"`
	SourceDate time.Time `json:"source_date"`
	Score      float64   `json:"score"`
}

// Citation builds the citation view of this item.
func (i *Item) Citation() Citation {
	return Citation{
		Vertical:   i.doc.EngineID(),
		DocID:      i.doc.ID(),
		Title:      i.doc.Title(),
		Locator:    i.doc.Section(),
		SourceURI:  i.doc.SourceURI(),
		SourceDate: i.doc.SourceDate(),
		Score:      i.finalScore,
	}
}
