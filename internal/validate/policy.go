// Package validate implements ValidationPolicy (C4): deciding whether an LLM
// translation/transliteration output is acceptable, with an ordered reason code on
// rejection. Pure function of its inputs; no I/O, no retries.
package validate

import (
	"strings"
	"unicode"

	"github.com/fifosk/ebook-pipeline/internal/text"
)

// RejectReason enumerates, in the exact order spec §4.2 checks them, why a translation or
// transliteration candidate was rejected.
type RejectReason string

const (
	ReasonNone RejectReason = ""

	ReasonInvalidOrPlaceholder       RejectReason = "Invalid or placeholder"
	ReasonTransliterationNotTranslation RejectReason = "Transliteration returned instead of translation"
	ReasonTooShort                   RejectReason = "Translation shorter than expected"
	ReasonMissingDiacritics           RejectReason = "Missing required diacritics"
	ReasonUnexpectedScript            RejectReason = "Unexpected script used"
	ReasonSegmentationFailure         RejectReason = "Segmentation failure"

	ReasonEmpty          RejectReason = "Empty"
	ReasonNonLatinReceived RejectReason = "Non-Latin received"
)

// Outcome is the result of a validation check: either accepted, or rejected with a reason.
type Outcome struct {
	Accepted bool
	Reason   RejectReason
	Detail   string // extra context (e.g. which script was found instead)
}

func ok() Outcome                       { return Outcome{Accepted: true} }
func reject(r RejectReason, d string) Outcome { return Outcome{Accepted: false, Reason: r, Detail: d} }

// segmentationLangs mirrors translation_validation.py's _SEGMENTATION_LANGS.
var segmentationLangs = map[string]bool{
	"thai": true, "th": true,
	"khmer": true, "km": true, "cambodian": true,
	"burmese": true, "myanmar": true, "my": true,
	"japanese": true, "ja": true, "日本語": true,
	"korean": true, "ko": true,
	"chinese": true, "zh": true, "zh-cn": true, "zh-tw": true,
}

var khmerAliases = map[string]bool{"khmer": true, "km": true, "cambodian": true}

// ValidateTranslation checks candidate, produced by translating source into
// targetLanguage, against the six rejection rules of spec §4.2, in order.
func ValidateTranslation(source, candidate, targetLanguage string) Outcome {
	trimmed := strings.TrimSpace(candidate)

	// 1. Invalid or placeholder.
	if text.IsPlaceholderTranslation(trimmed) {
		return reject(ReasonInvalidOrPlaceholder, "")
	}

	// 2. Transliteration returned instead of translation.
	if isProbableTransliteration(source, trimmed, targetLanguage) {
		return reject(ReasonTransliterationNotTranslation, "")
	}

	// 3. Translation shorter than expected.
	if isTranslationTooShort(source, trimmed) {
		return reject(ReasonTooShort, "")
	}

	// 4. Missing required diacritics (Arabic, Hebrew).
	if missing, label := missingRequiredDiacritics(trimmed, targetLanguage); missing {
		return reject(ReasonMissingDiacritics, label)
	}

	// 5. Unexpected script used.
	if unexpected, label := unexpectedScriptUsed(trimmed, targetLanguage); unexpected {
		return reject(ReasonUnexpectedScript, label)
	}

	// 6. Segmentation failure.
	if !isSegmentationOK(source, trimmed, targetLanguage) {
		return reject(ReasonSegmentationFailure, "")
	}

	return ok()
}

// ValidateTransliteration checks a transliteration candidate: must be non-empty and
// predominantly Latin script.
func ValidateTransliteration(candidate string) Outcome {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return reject(ReasonEmpty, "")
	}
	if !text.IsPredominantlyLatin(trimmed) {
		return reject(ReasonNonLatinReceived, "")
	}
	return ok()
}

func isProbableTransliteration(source, candidate, targetLanguage string) bool {
	if candidate == "" || !text.HasNonLatinLetters(source) {
		return false
	}
	if !text.IsNonLatinLanguageHint(targetLanguage) {
		return false
	}
	return text.LatinFraction(candidate) >= 0.6
}

func isTranslationTooShort(source, candidate string) bool {
	originalLetters := text.LetterCount(source)
	if originalLetters <= 12 {
		return false
	}
	translationLetters := text.LetterCount(candidate)
	if translationLetters == 0 {
		return true
	}
	if originalLetters >= 80 && translationLetters < 15 {
		return true
	}
	ratio := float64(translationLetters) / float64(originalLetters)
	return originalLetters >= 30 && ratio < 0.28
}

func missingRequiredDiacritics(candidate, targetLanguage string) (bool, string) {
	lower := strings.ToLower(targetLanguage)
	for _, req := range text.DiacriticRequirements {
		matched := false
		for _, alias := range req.Aliases {
			if strings.Contains(lower, alias) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if req.ScriptRange != nil && req.ScriptRange.CountIn(candidate) == 0 {
			// Translation doesn't use the expected script at all; skip rather than
			// misfire on a mismatched target_language.
			return false, ""
		}
		if req.Pattern.CountIn(candidate) == 0 {
			return true, req.Label
		}
		return false, ""
	}
	return false, ""
}

func unexpectedScriptUsed(candidate, targetLanguage string) (bool, string) {
	if candidate == "" || !text.HasNonLatinLetters(candidate) {
		return false, ""
	}
	policy, ok := text.ScriptPolicyFor(targetLanguage)
	if !ok {
		return false, ""
	}

	distribution := text.ScriptCounts(candidate)
	totalNonLatin := nonLatinLetterCount(candidate)

	expectedCount := distribution[policy.ScriptLabel]
	if expectedCount == 0 {
		return true, policy.ScriptLabel
	}
	if totalNonLatin > 0 {
		expectedRatio := float64(expectedCount) / float64(totalNonLatin)
		otherCount := totalNonLatin - expectedCount

		dominantLabel, dominantCount := dominantScript(distribution)

		threshold := 2.0
		if v := float64(expectedCount) * 0.10; v > threshold {
			threshold = v
		}
		if expectedRatio < 0.85 || float64(otherCount) > threshold {
			var offenders []string
			for label, count := range distribution {
				if label != policy.ScriptLabel && count > 0 {
					offenders = append(offenders, label)
				}
			}
			label := policy.ScriptLabel
			if len(offenders) > 0 {
				label = policy.ScriptLabel + " (found " + strings.Join(offenders, ", ") + ")"
			}
			return true, label
		}
		if dominantLabel != "" && dominantLabel != policy.ScriptLabel && dominantCount > expectedCount {
			return true, policy.ScriptLabel + " (found " + dominantLabel + ")"
		}
	}
	return false, ""
}

func dominantScript(distribution map[string]int) (string, int) {
	var label string
	var best int
	for l, c := range distribution {
		if c > best {
			label, best = l, c
		}
	}
	return label, best
}

func nonLatinLetterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			n++
		}
	}
	return n
}

func isSegmentationOK(source, candidate, targetLanguage string) bool {
	lang := strings.ToLower(strings.TrimSpace(targetLanguage))
	if !segmentationLangs[lang] {
		return true
	}
	sourceWords := len(strings.Fields(source))
	if sourceWords == 0 {
		sourceWords = 1
	}
	if sourceWords <= 1 {
		return true
	}

	tokens := text.Tokenize(candidate)
	tokenCount := len(tokens)
	if tokenCount <= 1 {
		return false
	}
	if khmerAliases[lang] && tokenCount > 2 {
		short := 0
		for _, t := range tokens {
			if len([]rune(t)) <= 2 {
				short++
			}
		}
		if float64(short)/float64(tokenCount) > 0.1 {
			return false
		}
	}

	requiredMin, maxReasonable := segmentationThresholds(lang, sourceWords)
	if tokenCount < requiredMin {
		return false
	}
	if tokenCount > maxReasonable {
		return false
	}
	return true
}

func segmentationThresholds(lang string, sourceWords int) (int, int) {
	if khmerAliases[lang] {
		requiredMin := max(2, int(float64(sourceWords)*0.6))
		maxReasonable := max(sourceWords*2, requiredMin+1)
		return requiredMin, maxReasonable
	}
	return max(4, int(float64(sourceWords)*0.6)), sourceWords * 4
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
