// Package text implements script-aware normalization of LLM translation output:
// whitespace collapsing, quote stripping, translation/transliteration splitting,
// Latin-heaviness detection, and placeholder-response detection (spec C3).
package text

import (
	"strings"
	"unicode"
)

// refusalPhrases is the bundled list of case-insensitive substrings that mark a model
// response as a refusal/placeholder rather than an actual translation attempt.
var refusalPhrases = []string{
	"i can't translate",
	"i cannot translate",
	"i'm unable to translate",
	"i am unable to translate",
	"as an ai language model",
	"i don't understand",
	"i do not understand",
	"sorry, i can't",
	"sorry, i cannot",
	"no translation available",
	"translation not available",
	"unable to process",
	"i'm not able to",
	"i am not able to",
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims the ends.
func CollapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

var matchedQuotePairs = [][2]rune{
	{'"', '"'},
	{'\'', '\''},
	{'“', '”'}, // “ ”
	{'‘', '’'}, // ‘ ’
	{'«', '»'}, // « »
}

// StripMatchedQuotes removes a single layer of surrounding quotes if the first and last
// rune form a known matched pair.
func StripMatchedQuotes(s string) string {
	trimmed := strings.TrimSpace(s)
	runes := []rune(trimmed)
	if len(runes) < 2 {
		return trimmed
	}
	first, last := runes[0], runes[len(runes)-1]
	for _, pair := range matchedQuotePairs {
		if first == pair[0] && last == pair[1] {
			return strings.TrimSpace(string(runes[1 : len(runes)-1]))
		}
	}
	return trimmed
}

// SplitTranslationTransliteration splits a two-line "translation\ntransliteration" blob
// into its two parts. If there is only one non-empty line, transliteration is empty.
func SplitTranslationTransliteration(blob string) (translation string, transliteration string) {
	lines := strings.SplitN(strings.TrimRight(blob, "\n"), "\n", 2)
	translation = CollapseWhitespace(lines[0])
	if len(lines) > 1 {
		transliteration = CollapseWhitespace(lines[1])
	}
	return translation, transliteration
}

// LetterCount counts the letter runes in value.
func LetterCount(value string) int {
	count := 0
	for _, r := range value {
		if unicode.IsLetter(r) {
			count++
		}
	}
	return count
}

// HasNonLatinLetters reports whether value contains any letter outside the Latin script.
func HasNonLatinLetters(value string) bool {
	for _, r := range value {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}

// LatinFraction returns the fraction of letters (Latin / (Latin+non-Latin)) in value, or
// 0 if value has no letters at all.
func LatinFraction(value string) float64 {
	var latin, nonLatin int
	for _, r := range value {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.Is(unicode.Latin, r) {
			latin++
		} else {
			nonLatin++
		}
	}
	total := latin + nonLatin
	if total == 0 {
		return 0
	}
	return float64(latin) / float64(total)
}

// IsPredominantlyLatin reports whether a string is mostly Latin-script letters, the
// definition used by C8's rule-based transliteration acceptance check.
func IsPredominantlyLatin(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	return LatinFraction(trimmed) >= 0.9
}

// IsPlaceholderTranslation reports whether candidate looks like a refusal/placeholder
// response rather than an actual translation attempt.
func IsPlaceholderTranslation(candidate string) bool {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Tokenize splits candidate on whitespace after turning the zero-width characters that some
// models insert between CJK/Southeast-Asian glyphs into spaces (so they also separate
// tokens), used by segmentation validation.
func Tokenize(candidate string) []string {
	cleaned := stripZeroWidth(candidate)
	return strings.Fields(cleaned)
}

func stripZeroWidth(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '​', '‌', '‍', '⁠':
			return ' '
		default:
			return r
		}
	}, s)
}
