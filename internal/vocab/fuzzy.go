package vocab

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// MatcherOption is a functional option for configuring a [Matcher].
type MatcherOption func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched entry to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Match is a ranked lookup result.
type Match struct {
	Entry Entry
	// Score is the Jaro-Winkler similarity between the query and the entry
	// text, in [0, 1].
	Score float64
	// Phonetic reports whether the entry shared a Double Metaphone code with
	// the query.
	Phonetic bool
}

// Matcher finds saved vocabulary entries for approximate queries, so a user
// looking up "resterant" still lands on their saved "restaurant" entry.
//
// The algorithm proceeds in two stages: Double Metaphone codes are computed
// for each token of the query and of each entry text, and entries sharing a
// code become phonetic candidates ranked by Jaro-Winkler similarity against
// the phonetic threshold. When no phonetic candidate clears the bar, a
// secondary pass tests pure Jaro-Winkler similarity against the higher fuzzy
// threshold.
//
// All methods are safe for concurrent use — the Matcher is read-only after
// construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher returns a new [Matcher] configured with the supplied options.
// Default thresholds are 0.70 for phonetic matches and 0.85 for fuzzy
// fallback matches.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Lookup finds the entry whose text best matches query.
//
// query may be a single word or a space-separated phrase. Multi-word entries
// (e.g. "run out of") are supported: the matcher considers the best pairwise
// token score alongside full-string comparison when ranking candidates.
//
// Phonetic encoding only models Latin-script sound patterns, so for CJK and
// other non-Latin entries the fuzzy pass does the work on its own.
func (m *Matcher) Lookup(query string, entries []Entry) (Match, bool) {
	if len(entries) == 0 || strings.TrimSpace(query) == "" {
		return Match{}, false
	}

	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTokens := strings.Fields(queryLower)
	queryCodes := codesForTokens(queryTokens)

	var best Match

	for _, entry := range entries {
		entryLower := strings.ToLower(strings.TrimSpace(entry.Text))
		if entryLower == "" {
			continue
		}
		entryTokens := strings.Fields(entryLower)

		entryCodes := codesForTokens(entryTokens)
		phonetic := codesOverlap(queryCodes, entryCodes)

		jwScore := bestJWScore(queryTokens, entryTokens, queryLower, entryLower)

		if phonetic {
			if jwScore >= m.phoneticThreshold {
				if !best.Phonetic || jwScore > best.Score {
					best = Match{Entry: entry, Score: jwScore, Phonetic: true}
				}
			}
		} else if !best.Phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.Score {
				best = Match{Entry: entry, Score: jwScore, Phonetic: false}
			}
		}
	}

	if best.Entry.Text != "" {
		return best, true
	}
	return Match{}, false
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or
// contains no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	// Iterate over the smaller set for efficiency.
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

// bestJWScore computes the highest Jaro-Winkler similarity between the query
// and the entry text using three strategies:
//
//  1. Full-string comparison (e.g. "runout of" vs "run out of").
//  2. Space-stripped comparison (e.g. "runoutof" vs "runoutof").
//  3. Best pairwise token comparison — the maximum score between any query
//     token and any entry token.
//
// longTolerance is passed as false to use standard Jaro-Winkler scoring.
func bestJWScore(queryTokens, entryTokens []string, queryFull, entryFull string) float64 {
	score := matchr.JaroWinkler(queryFull, entryFull, false)

	if len(queryTokens) > 1 || len(entryTokens) > 1 {
		concat1 := strings.Join(queryTokens, "")
		concat2 := strings.Join(entryTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, qt := range queryTokens {
		for _, et := range entryTokens {
			if s := matchr.JaroWinkler(qt, et, false); s > score {
				score = s
			}
		}
	}

	return score
}
