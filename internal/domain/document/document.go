package document

import (
	"fmt"
	"time"
)

// Document is a single retrieved evidence candidate (immutable value object).
type Document struct {
	id         string
	engineID   string
	title      string
	snippet    string
	authority  string
	section    string
	sourceURI  string
	sourceDate time.Time
	rawScore   float64
}

// New validates and creates a Document.
// Retrieval transports construct these from engine responses; a document
// needs at least a title or a snippet to be citable.
func New(
	id, engineID, title, snippet, authority, section, sourceURI string,
	sourceDate time.Time, rawScore float64,
) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if engineID == "" {
		return Document{}, fmt.Errorf("document %s: engine ID is required", id)
	}
	if snippet == "" && title == "" {
		return Document{}, fmt.Errorf("document %s: snippet or title is required", id)
	}
	return Document{
		id:         id,
		engineID:   engineID,
		title:      title,
		snippet:    snippet,
		authority:  authority,
		section:    section,
		sourceURI:  sourceURI,
		sourceDate: sourceDate,
		rawScore:   rawScore,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id, engineID, title, snippet, authority, section, sourceURI string,
	sourceDate time.Time, rawScore float64,
) Document {
	return Document{
		id: id, engineID: engineID, title: title, snippet: snippet,
		authority: authority, section: section, sourceURI: sourceURI,
		sourceDate: sourceDate, rawScore: rawScore,
	}
}

// ID returns the engine-local document identifier.
func (d *Document) ID() string { return d.id }

// EngineID returns the source engine identifier.
func (d *Document) EngineID() string { return d.engineID }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Snippet returns the retrieved text fragment.
func (d *Document) Snippet() string { return d.snippet }

// Authority returns the issuing authority citation field.
func (d *Document) Authority() string { return d.authority }

// Section returns the section/locator citation field.
func (d *Document) Section() string { return d.section }

// SourceURI returns the canonical source location ("" when unknown).
func (d *Document) SourceURI() string { return d.sourceURI }

// SourceDate returns the document issue date (zero when unknown).
func (d *Document) SourceDate() time.Time { return d.sourceDate }

// RawScore returns the relevance score assigned by the source engine.
// Raw scores are not comparable across engines.
func (d *Document) RawScore() float64 { return d.rawScore }

// CanonicalID returns the cross-engine unique identifier: "<engine>/<id>".
func (d *Document) CanonicalID() string {
	return d.engineID + "/" + d.id
}
