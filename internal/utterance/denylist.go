package utterance

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultPhrases are phrases speech recognisers tend to invent from noise
// or silence, mostly subtitle credits learned from video transcripts.
var DefaultPhrases = []string{
	"subscribe",
	"suscríbete",
	"subtítulos",
	"copyright",
	"moo",
	"you",
	"thank you",
	"gracias por ver",
	"mbc",
}

// Denylist blocks transcripts that contain a known hallucination phrase.
// A Denylist is read-only after construction and safe for concurrent use.
type Denylist struct {
	phrases []string
	windows [][]string // words of each phrase, for fuzzy matching
	fuzzy   float64
}

// DenylistOption configures a [Denylist].
type DenylistOption func(*Denylist)

// WithFuzzyThreshold also blocks transcripts where a run of words scores at
// least threshold against a phrase under Jaro-Winkler similarity. Zero
// disables fuzzy matching. Values above 1 are clamped.
func WithFuzzyThreshold(threshold float64) DenylistOption {
	return func(d *Denylist) { d.fuzzy = min(max(threshold, 0), 1) }
}

// NewDenylist returns a denylist over phrases. Phrases are lower-cased and
// trimmed; blank phrases are ignored. A nil slice selects [DefaultPhrases].
func NewDenylist(phrases []string, opts ...DenylistOption) *Denylist {
	if phrases == nil {
		phrases = DefaultPhrases
	}
	d := &Denylist{}
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		d.phrases = append(d.phrases, p)
		d.windows = append(d.windows, strings.Fields(p))
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Phrases returns the normalised phrase list.
func (d *Denylist) Phrases() []string { return append([]string(nil), d.phrases...) }

// Match reports the first phrase found in text. Exact matching is a
// substring test on the lower-cased, trimmed text, so "you" also blocks
// "your". Fuzzy matching, when enabled, compares every run of as many words
// as the phrase has.
func (d *Denylist) Match(text string) (string, bool) {
	clean := strings.ToLower(strings.TrimSpace(text))
	if clean == "" {
		return "", false
	}
	for _, p := range d.phrases {
		if strings.Contains(clean, p) {
			return p, true
		}
	}
	if d.fuzzy == 0 {
		return "", false
	}

	words := normalizedWords(clean)
	for i, p := range d.phrases {
		n := len(d.windows[i])
		if n == 0 || n > len(words) {
			continue
		}
		for start := 0; start+n <= len(words); start++ {
			window := strings.Join(words[start:start+n], " ")
			if matchr.JaroWinkler(window, p, false) >= d.fuzzy {
				return p, true
			}
		}
	}
	return "", false
}
