package fusion

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/kailas-cloud/evidex/internal/domain/document"
)

// goNumberRegex matches government order references like "G.O.Ms.No.54"
// or "G.O.Rt.No.123" in titles and snippets.
var goNumberRegex = regexp.MustCompile(`(?i)\bg\.?\s*o\.?\s*(ms|rt|p)?\.?\s*no\.?\s*:?\s*(\d+)`)

// candidate carries a document with its comparison artifacts, computed once.
type candidate struct {
	doc      document.Document
	tokens   map[string]bool
	source   string
	goNumber string
}

// group is one duplicate cluster: the best-scored member plus the canonical
// ids of the documents it absorbed.
type group struct {
	canonical document.Document
	absorbed  []string
}

// dedupe clusters documents that cite the same underlying source and keeps
// the highest-raw-score member of each cluster. Two documents are duplicates
// when they share a source URI, share a G.O. number, or their normalized
// text similarity reaches the threshold. Clustering is transitive and the
// input is sorted first, so the result depends on content only, never on
// engine iteration order.
func dedupe(docs []document.Document, threshold float64) []group {
	if len(docs) == 0 {
		return nil
	}

	cands := make([]candidate, len(docs))
	for i, d := range docs {
		text := d.Title() + " " + d.Snippet()
		cands[i] = candidate{
			doc:      d,
			tokens:   tokenize(text),
			source:   normalizeSource(d.SourceURI()),
			goNumber: goNumber(text),
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		return cands[i].doc.CanonicalID() < cands[j].doc.CanonicalID()
	})

	parent := make([]int, len(cands))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			if sameSource(&cands[i], &cands[j], threshold) {
				union(i, j)
			}
		}
	}

	clusters := make(map[int][]int, len(cands))
	for i := range cands {
		root := find(i)
		clusters[root] = append(clusters[root], i)
	}

	groups := make([]group, 0, len(clusters))
	for _, members := range clusters {
		best := members[0]
		for _, m := range members[1:] {
			if betterCanonical(&cands[m], &cands[best]) {
				best = m
			}
		}
		g := group{canonical: cands[best].doc}
		for _, m := range members {
			if m != best {
				g.absorbed = append(g.absorbed, cands[m].doc.CanonicalID())
			}
		}
		sort.Strings(g.absorbed)
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].canonical.CanonicalID() < groups[j].canonical.CanonicalID()
	})
	return groups
}

func sameSource(a, b *candidate, threshold float64) bool {
	if a.source != "" && a.source == b.source {
		return true
	}
	if a.goNumber != "" && a.goNumber == b.goNumber {
		return true
	}
	return jaccard(a.tokens, b.tokens) >= threshold
}

// betterCanonical prefers the higher raw score; equal scores resolve to the
// lexicographically smaller canonical id so the winner never depends on
// input order.
func betterCanonical(a, b *candidate) bool {
	if a.doc.RawScore() != b.doc.RawScore() {
		return a.doc.RawScore() > b.doc.RawScore()
	}
	return a.doc.CanonicalID() < b.doc.CanonicalID()
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens[b.String()] = true
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens[b.String()] = true
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func normalizeSource(uri string) string {
	uri = strings.ToLower(strings.TrimSpace(uri))
	uri = strings.TrimPrefix(uri, "https://")
	uri = strings.TrimPrefix(uri, "http://")
	return strings.TrimRight(uri, "/")
}

// goNumber extracts a normalized government order reference ("ms:54") from
// text, or "" when none is present.
func goNumber(text string) string {
	m := goNumberRegex.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	series := strings.ToLower(m[1])
	if series == "" {
		series = "go"
	}
	return series + ":" + m[2]
}
