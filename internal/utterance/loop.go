package utterance

import (
	"strings"
	"unicode"
)

const (
	// loopMinRunes is the shortest text the loop detector will judge.
	loopMinRunes = 50

	// loopMinWords and loopMaxUniqueRatio flag long texts made of very few
	// distinct words, e.g. "ya se ve, ya se ve, ya se ve ...".
	loopMinWords       = 10
	loopMaxUniqueRatio = 0.2
)

// IsLooping reports whether text looks like a transcriber stuck repeating
// itself. Texts shorter than 50 runes are never looping. Longer texts loop
// when more than 10 words share fewer than 20% distinct forms, or when one
// half of the text contains the other.
func IsLooping(text string) bool {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) < loopMinRunes {
		return false
	}

	if words := normalizedWords(text); len(words) > loopMinWords {
		distinct := make(map[string]struct{}, len(words))
		for _, w := range words {
			distinct[w] = struct{}{}
		}
		if float64(len(distinct))/float64(len(words)) < loopMaxUniqueRatio {
			return true
		}
	}

	mid := len(runes) / 2
	first, second := string(runes[:mid]), string(runes[mid:])
	return strings.Contains(second, first) || strings.Contains(first, second)
}

// normalizedWords splits text on whitespace, lower-cases each word and trims
// surrounding punctuation. Words that are only punctuation are dropped.
func normalizedWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := fields[:0]
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}
