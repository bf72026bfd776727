package orchestrator

import (
	"regexp"
	"strings"

	"github.com/kailas-cloud/evidex/internal/domain/evidence"
)

// citationRegex matches the [vertical:doc_id:locator] tags the synthesizer
// is instructed to emit.
var citationRegex = regexp.MustCompile(`\[([a-z0-9_]+):([^:\]]+):([^\]]*)\]`)

// hedgeWords reduce answer confidence when they appear in the prose.
var hedgeWords = []string{"may", "might", "possibly", "unclear", "limited information"}

// extractCitations resolves citation tags in the answer text against the
// evidence list. Tags referencing unknown documents are dropped; each
// document is cited once, keeping the first locator seen.
func extractCitations(text string, evid []evidence.Item) []evidence.Citation {
	byID := make(map[string]*evidence.Item, len(evid))
	for i := range evid {
		item := &evid[i]
		doc := item.Document()
		byID[doc.ID()] = item
	}

	var citations []evidence.Citation
	seen := make(map[string]bool)
	for _, m := range citationRegex.FindAllStringSubmatch(text, -1) {
		docID, locator := m[2], m[3]
		item, ok := byID[docID]
		if !ok || seen[docID] {
			continue
		}
		seen[docID] = true
		c := item.Citation()
		if locator != "" {
			c.Locator = locator
		}
		citations = append(citations, c)
	}
	return citations
}

// usedEngines lists the engines behind the evidence, ordered by best rank.
func usedEngines(evid []evidence.Item) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range evid {
		doc := evid[i].Document()
		id := doc.EngineID()
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// confidence scores the answer from citation density, average cited evidence
// score, evidence coverage, and hedging language. Always positive, so a
// synthesized answer never reports zero confidence.
func confidence(text string, citations []evidence.Citation, evid []evidence.Item) float64 {
	wordCount := len(strings.Fields(text))
	per100 := float64(wordCount) / 100
	if per100 < 1 {
		per100 = 1
	}
	density := float64(len(citations)) / per100 / 3
	if density > 1 {
		density = 1
	}

	var avgScore float64
	if len(citations) > 0 {
		for _, c := range citations {
			avgScore += c.Score
		}
		avgScore /= float64(len(citations))
	}

	var coverage float64
	if len(evid) > 0 && len(citations) > 0 {
		top := len(evid)
		if top > 5 {
			top = 5
		}
		coverage = float64(len(citations)) / float64(top)
		if coverage > 1 {
			coverage = 1
		}
	}

	lower := strings.ToLower(text)
	hedgePenalty := 0.0
	for _, w := range hedgeWords {
		if strings.Contains(lower, w) {
			hedgePenalty += 0.1
		}
	}
	if hedgePenalty > 0.3 {
		hedgePenalty = 0.3
	}

	return 0.3*density + 0.3*avgScore + 0.3*coverage + 0.1*(1-hedgePenalty)
}
