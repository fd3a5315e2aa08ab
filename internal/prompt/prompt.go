// Package prompt implements PromptBuilder (C5): single and batch translation/
// transliteration prompts, parameterized by the target language's script, segmentation,
// and dialectal-disambiguation requirements.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fifosk/ebook-pipeline/internal/text"
)

// languageCodes maps a lower-cased language name to its ISO-639-1-ish code, used to render
// the "French (fr)" descriptor style. Unknown languages pass through unchanged.
var languageCodes = map[string]string{
	"english": "en", "french": "fr", "german": "de", "spanish": "es", "italian": "it",
	"portuguese": "pt", "russian": "ru", "ukrainian": "uk", "bulgarian": "bg",
	"greek": "el", "hindi": "hi", "marathi": "mr", "sanskrit": "sa", "bengali": "bn",
	"gujarati": "gu", "tamil": "ta", "telugu": "te", "kannada": "kn", "malayalam": "ml",
	"punjabi": "pa", "sinhala": "si", "lao": "lo", "khmer": "km", "burmese": "my",
	"thai": "th", "georgian": "ka", "armenian": "hy", "syriac": "syr", "arabic": "ar",
	"hebrew": "he", "chinese": "zh", "japanese": "ja", "korean": "ko", "polish": "pl",
	"dutch": "nl", "turkish": "tr", "vietnamese": "vi", "indonesian": "id",
	"serbian": "sr", "croatian": "hr", "czech": "cs", "slovak": "sk", "romanian": "ro",
	"romani": "rom", "pashto": "ps", "urdu": "ur", "persian": "fa",
}

// segmentationRequiredLanguages mirrors validate's segmentationLangs set: languages whose
// writing system is not whitespace-delimited, requiring an explicit prompt example.
var segmentationRequiredLanguages = map[string]bool{
	"thai": true, "khmer": true, "burmese": true, "myanmar": true,
	"japanese": true, "korean": true, "chinese": true,
}

// dialectalDisambiguation pairs a target language with the clause warning the model away
// from a commonly-confused sibling language.
var dialectalDisambiguation = map[string]string{
	"romani":  "Romani is a distinct Indo-Aryan language of the Romani people; it is NOT Romanian. Do not substitute Romanian.",
	"pashto":  "Pashto is a distinct Iranian language written in a Perso-Arabic script; it is NOT Urdu and NOT Hindi. Do not substitute either.",
}

var diacriticClauses = map[string]string{
	"arabic": "Include full Arabic diacritics (tashkīl: fatḥa, kasra, ḍamma, sukūn, shadda) throughout.",
	"hebrew": "Include Hebrew niqqud (vowel points) throughout.",
}

// Descriptor renders a human-readable "Name (code)" label for language, falling back to
// the bare name when no code is known.
func Descriptor(language string) string {
	lower := strings.ToLower(strings.TrimSpace(language))
	if code, ok := languageCodes[lower]; ok {
		return fmt.Sprintf("%s (%s)", strings.Title(lower), code)
	}
	return language
}

// SingleOptions configures BuildSingle.
type SingleOptions struct {
	SourceLanguage         string
	TargetLanguage         string
	IncludeTransliteration bool
	// Glossary pins recurring proper nouns (character/place/attack names) to a fixed
	// rendering; see engine.BuildGlossary.
	Glossary map[string]string
}

// BuildSingle produces the prompt for translating one sentence: a numbered list of
// imperatives ending in "Provide only the translated text on the first line.", plus
// per-language clauses for segmentation, script enforcement, dialectal disambiguation,
// diacritics, and optional transliteration.
func BuildSingle(opts SingleOptions) string {
	var b strings.Builder
	source := Descriptor(opts.SourceLanguage)
	target := Descriptor(opts.TargetLanguage)
	lowerTarget := strings.ToLower(opts.TargetLanguage)

	n := 0
	step := func(format string, args ...any) {
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, fmt.Sprintf(format, args...))
	}

	step("Translate the following text from %s to %s.", source, target)
	step("Preserve the original meaning, tone, and register as closely as possible.")

	if segmentationRequiredLanguages[strings.ToLower(baseLanguageKey(lowerTarget))] {
		step("Insert a single space between words so the output is segmented (e.g. \"%s\"); do not run words together.", segmentationExample(lowerTarget))
	}

	if instructions := text.ScriptPromptInstructions(opts.TargetLanguage); len(instructions) > 0 {
		for _, ins := range instructions {
			step("%s", ins)
		}
	}

	for lang, clause := range dialectalDisambiguation {
		if strings.Contains(lowerTarget, lang) {
			step("%s", clause)
		}
	}

	for lang, clause := range diacriticClauses {
		if strings.Contains(lowerTarget, lang) {
			step("%s", clause)
		}
	}

	if opts.IncludeTransliteration {
		step("If appropriate, append a Latin-script transliteration on the second line; no labels, no parentheses.")
	}

	if clause := glossaryClause(opts.Glossary); clause != "" {
		step("%s", clause)
	}

	step("Provide only the translated text on the first line.")
	return strings.TrimRight(b.String(), "\n")
}

// glossaryClause renders a fixed-order "keep these terms as given" instruction, or "" when
// glossary is empty.
func glossaryClause(glossary map[string]string) string {
	if len(glossary) == 0 {
		return ""
	}
	keys := make([]string, 0, len(glossary))
	for k := range glossary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%q -> %q", k, glossary[k])
	}
	return fmt.Sprintf("Preserve these terms exactly as given, do not re-translate them: %s.", strings.Join(pairs, ", "))
}

// baseLanguageKey strips common regional suffixes ("japanese (formal)" -> "japanese") so
// segmentation/script lookups match on the language family.
func baseLanguageKey(lower string) string {
	for lang := range segmentationRequiredLanguages {
		if strings.Contains(lower, lang) {
			return lang
		}
	}
	return lower
}

func segmentationExample(lowerTarget string) string {
	switch {
	case strings.Contains(lowerTarget, "japanese"):
		return "私 は 学生 です"
	case strings.Contains(lowerTarget, "chinese"):
		return "我 是 学生"
	case strings.Contains(lowerTarget, "korean"):
		return "저 는 학생 입니다"
	case strings.Contains(lowerTarget, "thai"):
		return "ฉัน เป็น นักเรียน"
	case strings.Contains(lowerTarget, "khmer"):
		return "ខ្ញុំ ជា សិស្ស"
	case strings.Contains(lowerTarget, "burmese"), strings.Contains(lowerTarget, "myanmar"):
		return "ကျွန်တော် သည် ကျောင်းသား ဖြစ်သည်"
	default:
		return "word word word"
	}
}

// BatchItem is one input sentence in a batch translation request.
type BatchItem struct {
	ID   int
	Text string
}

// BatchOptions configures BuildBatch.
type BatchOptions struct {
	SourceLanguage         string
	TargetLanguage         string
	IncludeTransliteration bool
	// Glossary pins recurring proper nouns (character/place/attack names) to a fixed
	// rendering; see engine.BuildGlossary.
	Glossary map[string]string
}

// BuildBatch produces the system prompt for a batched translation request: instructs the
// model to return only valid JSON of shape {"items":[{"id":n,"translation":"...",
// "transliteration"?:"..."}]}, single-line strings, no fences, no echo of the source.
func BuildBatch(opts BatchOptions) string {
	var b strings.Builder
	source := Descriptor(opts.SourceLanguage)
	target := Descriptor(opts.TargetLanguage)

	fmt.Fprintf(&b, "Translate each item's \"text\" field from %s to %s.\n", source, target)
	b.WriteString("Respond with ONLY valid JSON of this exact shape, no markdown code fences, no commentary:\n")
	if opts.IncludeTransliteration {
		b.WriteString(`{"items": [{"id": <int>, "translation": "<single-line string>", "transliteration": "<optional single-line string>"}]}` + "\n")
	} else {
		b.WriteString(`{"items": [{"id": <int>, "translation": "<single-line string>"}]}` + "\n")
	}
	b.WriteString("Every translation must be a single line (no embedded newlines). Do not echo the source text. Preserve the input item order and ids exactly.\n")

	if instructions := text.ScriptPromptInstructions(opts.TargetLanguage); len(instructions) > 0 {
		for _, ins := range instructions {
			fmt.Fprintf(&b, "%s\n", ins)
		}
	}
	lowerTarget := strings.ToLower(opts.TargetLanguage)
	for lang, clause := range dialectalDisambiguation {
		if strings.Contains(lowerTarget, lang) {
			fmt.Fprintf(&b, "%s\n", clause)
		}
	}
	for lang, clause := range diacriticClauses {
		if strings.Contains(lowerTarget, lang) {
			fmt.Fprintf(&b, "%s\n", clause)
		}
	}

	if clause := glossaryClause(opts.Glossary); clause != "" {
		fmt.Fprintf(&b, "%s\n", clause)
	}

	return strings.TrimRight(b.String(), "\n")
}

// BuildTransliteration produces a single-item transliteration-only prompt, used by C8's
// LLM fallback when the local rule-based transliterator yields nothing usable.
func BuildTransliteration(targetLanguage, translation string) string {
	target := Descriptor(targetLanguage)
	return fmt.Sprintf(
		"1. Provide a Latin-script transliteration of the following %s text: %q\n"+
			"2. Use common romanization conventions for %s.\n"+
			"3. Provide only the transliteration, no labels, no original text repeated.",
		target, translation, target,
	)
}
