// Package suggest finds the defined identifier a misspelt reference most
// likely meant. It backs the "did you mean" hints of the linter.
//
// Matching runs in two stages:
//
//  1. Phonetic filtering: identifiers are split into words at underscores,
//     dashes, dots and spaces, and Double Metaphone codes are computed for
//     every word. A candidate whose codes overlap the input's codes is a
//     phonetic candidate.
//
//  2. Jaro-Winkler ranking: the phonetic candidate with the highest
//     similarity wins if it reaches the phonetic threshold. Without any
//     phonetic candidate, the most similar identifier wins if it reaches the
//     stricter fuzzy threshold.
package suggest

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a phonetic
// candidate needs. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score a candidate needs
// when no phonetic candidate exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher ranks identifiers by similarity. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Closest returns the candidate most similar to id. A candidate equal to id
// is ignored; one differing only in case scores 1. ok is false when no
// candidate reaches its threshold; match is then empty and score 0.
func (m *Matcher) Closest(id string, candidates []string) (match string, score float64, ok bool) {
	idLower := strings.ToLower(strings.TrimSpace(id))
	if idLower == "" || len(candidates) == 0 {
		return "", 0, false
	}
	idWords := words(idLower)
	idCodes := codesFor(idWords)

	type candidate struct {
		id       string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, c := range candidates {
		cLower := strings.ToLower(strings.TrimSpace(c))
		if cLower == "" || c == id {
			continue
		}
		cWords := words(cLower)
		jw := bestScore(idWords, cWords, idLower, cLower)

		if codesOverlap(idCodes, codesFor(cWords)) {
			if jw >= m.phoneticThreshold && (!best.phonetic || jw > best.score) {
				best = candidate{id: c, score: jw, phonetic: true}
			}
		} else if !best.phonetic && jw >= m.fuzzyThreshold && jw > best.score {
			best = candidate{id: c, score: jw}
		}
	}

	if best.id == "" {
		return "", 0, false
	}
	return best.id, best.score, true
}

// words splits an identifier at every rune that is neither a letter nor a
// digit.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// codesFor returns the union of the Double Metaphone codes of words. Empty
// codes are left out.
func codesFor(words []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(words)*2)
	for _, w := range words {
		p, s := matchr.DoubleMetaphone(w)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestScore is the higher Jaro-Winkler similarity of the full strings and of
// the strings with separators removed.
func bestScore(aWords, bWords []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aWords) > 1 || len(bWords) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aWords, ""), strings.Join(bWords, ""), false); s > score {
			score = s
		}
	}
	return score
}
