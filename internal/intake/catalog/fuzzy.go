package catalog

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/smart-order-intake/server/internal/intake/model"
)

// Index key weights; they must sum to 1.
const (
	codeWeight = 0.4
	nameWeight = 0.6
)

type indexedProduct struct {
	code      string
	name      string
	nameWords []string
}

type fuzzyIndex struct {
	entries []indexedProduct
}

type fuzzyHit struct {
	idx   int
	score float64
}

func newFuzzyIndex(products []model.Product) *fuzzyIndex {
	ix := &fuzzyIndex{entries: make([]indexedProduct, len(products))}
	for i, p := range products {
		name := normalize(p.Name)
		ix.entries[i] = indexedProduct{
			code:      normalize(p.Code),
			name:      name,
			nameWords: strings.Fields(name),
		}
	}
	return ix
}

// search returns every product scoring below SuggestionThreshold, best first.
// Ties keep catalog order.
func (ix *fuzzyIndex) search(query string) []fuzzyHit {
	q := normalize(query)
	if q == "" {
		return nil
	}
	var hits []fuzzyHit
	for i := range ix.entries {
		if s := ix.score(q, i); s < SuggestionThreshold {
			hits = append(hits, fuzzyHit{idx: i, score: s})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score < hits[b].score })
	return hits
}

// score is the weighted mean distance over the keys that are close enough to
// count; 1 when neither key is.
func (ix *fuzzyIndex) score(q string, i int) float64 {
	if q == "" {
		return 1
	}
	e := ix.entries[i]
	var num, den float64
	if d := keyDistance(q, e.code, []string{e.code}); d < SuggestionThreshold {
		num += codeWeight * d
		den += codeWeight
	}
	if d := keyDistance(q, e.name, e.nameWords); d < SuggestionThreshold {
		num += nameWeight * d
		den += nameWeight
	}
	if den == 0 {
		return 1
	}
	return num / den
}

// keyDistance is 0 when field contains q, else the best normalised edit
// distance between q and the field or any run of field words of similar length.
func keyDistance(q, field string, words []string) float64 {
	if field == "" {
		return 1
	}
	if strings.Contains(field, q) {
		return 0
	}
	best := distance(q, field)
	qn := len(strings.Fields(q))
	for n := max(1, qn-1); n <= qn+1 && n <= len(words); n++ {
		for start := 0; start+n <= len(words); start++ {
			if d := distance(q, strings.Join(words[start:start+n], " ")); d < best {
				best = d
			}
		}
	}
	return best
}

func distance(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}

// normalize case-folds, strips diacritics and collapses whitespace so that
// "STRÅDAL  620" and "stradal 620" compare equal. Transformers carry state,
// so a fresh chain is built per call.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}
