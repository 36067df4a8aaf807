// Package search picks the storefront search hit that names the same game
// as a catalog title. Titles are folded (case, accents, trademark signs)
// and split into word sets; a candidate scores |Q ∩ C| / |Q ∪ C| against
// the query. Matchers hold no state and may be shared.
package search

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Candidate is one storefront search hit.
type Candidate struct {
	ID    string
	Title string
}

// Match is a candidate together with its similarity to the query.
type Match struct {
	Candidate
	Score float64
}

// Matcher ranks candidates against a query title.
type Matcher interface {
	// Rank returns candidates with a positive score, best first.
	Rank(query string, cands []Candidate) []Match
	// Best returns the top candidate when its score reaches the threshold.
	Best(query string, cands []Candidate) (Match, bool)
}

// Option tunes a Matcher.
type Option func(*config)

type config struct {
	threshold float64
	stopwords map[string]struct{}
}

func defaultConfig() config {
	return config{
		threshold: 0.5,
		stopwords: toSet([]string{"the", "a", "an", "of", "and", "for", "edition"}),
	}
}

// WithThreshold sets the minimum score Best accepts. Values outside [0,1]
// are ignored.
func WithThreshold(t float64) Option {
	return func(c *config) {
		if t >= 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// WithStopwords replaces the default stop words. An empty list disables
// stop word removal.
func WithStopwords(words []string) Option {
	return func(c *config) {
		c.stopwords = toSet(words)
	}
}

type matcher struct {
	cfg config
}

// NewMatcher builds a Matcher with the given options.
func NewMatcher(opts ...Option) Matcher {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &matcher{cfg: cfg}
}

func (m *matcher) Rank(q string, cands []Candidate) []Match {
	if len(cands) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	qTokens := tokenize(q, m.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		Match
		lenRunes int
		pos      int
	}

	buf := make([]scored, 0, len(cands))
	for i, c := range cands {
		cTokens := tokenize(c.Title, m.cfg.stopwords)
		over := overlap(qTokens, cTokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + len(cTokens) - over)
		if union <= 0 {
			continue
		}
		buf = append(buf, scored{
			Match:    Match{Candidate: c, Score: float64(over) / union},
			lenRunes: utf8.RuneCountInString(c.Title),
			pos:      i,
		})
	}
	if len(buf) == 0 {
		return nil
	}

	// Ties prefer the shorter title, then the storefront's own order.
	slices.SortFunc(buf, func(a, b scored) int {
		return cmp.Or(
			cmp.Compare(b.Score, a.Score),
			cmp.Compare(a.lenRunes, b.lenRunes),
			cmp.Compare(a.pos, b.pos),
		)
	})

	out := make([]Match, len(buf))
	for i := range buf {
		out[i] = buf[i].Match
	}
	return out
}

func (m *matcher) Best(q string, cands []Candidate) (Match, bool) {
	ranked := m.Rank(q, cands)
	if len(ranked) == 0 || ranked[0].Score < m.cfg.threshold {
		return Match{}, false
	}
	return ranked[0], true
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Normalize folds case and strips accents and symbols such as ™ and ®, so
// "Pokémon™ Violet" and "POKEMON VIOLET" compare equal.
func Normalize(s string) string {
	t := transform.Chain(
		runes.Remove(runes.In(unicode.So)),
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
		cases.Fold(),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(Normalize(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = Normalize(strings.TrimSpace(w))
		if w != "" {
			m[w] = struct{}{}
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
