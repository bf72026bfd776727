package answer

import (
	"fmt"

	"github.com/kailas-cloud/evidex/internal/domain/evidence"
)

// Answer is the synthesized, citation-backed response (immutable value object).
type Answer struct {
	text        string
	citations   []evidence.Citation
	usedEngines []string
	confidence  float64
}

// New validates and creates an Answer. Confidence must be in (0,1].
func New(text string, citations []evidence.Citation, usedEngines []string, confidence float64) (Answer, error) {
	if text == "" {
		return Answer{}, fmt.Errorf("answer text is required")
	}
	if confidence <= 0 || confidence > 1 {
		return Answer{}, fmt.Errorf("confidence must be in (0,1], got %g", confidence)
	}
	return Answer{
		text:        text,
		citations:   append([]evidence.Citation(nil), citations...),
		usedEngines: append([]string(nil), usedEngines...),
		confidence:  confidence,
	}, nil
}

// Reconstruct creates an Answer without validation (storage hydration).
func Reconstruct(text string, citations []evidence.Citation, usedEngines []string, confidence float64) Answer {
	return Answer{text: text, citations: citations, usedEngines: usedEngines, confidence: confidence}
}

// Text returns the synthesized answer prose.
func (a *Answer) Text() string { return a.text }

// Citations returns the evidence citations in final rank order.
func (a *Answer) Citations() []evidence.Citation { return a.citations }

// UsedEngines returns the engines that contributed evidence, ordered by best rank.
func (a *Answer) UsedEngines() []string { return a.usedEngines }

// Confidence returns the answer confidence in (0,1].
func (a *Answer) Confidence() float64 { return a.confidence }
