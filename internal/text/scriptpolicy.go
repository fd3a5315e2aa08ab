package text

import "strings"

// ScriptEnforcementSuffix is appended to every script-policy prompt instruction (C5).
const ScriptEnforcementSuffix = "Use only the required target script throughout the response; do NOT mix other writing systems or transliteration. If unsure, still answer in the target script; never substitute another script."

// ScriptPolicy configures enforcement of a target writing system for one language.
type ScriptPolicy struct {
	Key         string
	Aliases     []string
	ScriptLabel string
	ScriptRange *unicodeRange
	Instruction string
}

// Matches reports whether targetLanguage names this policy's language (by substring match
// against any alias, case-insensitive, matching the Python implementation's leniency).
func (p ScriptPolicy) Matches(targetLanguage string) bool {
	lower := strings.ToLower(targetLanguage)
	for _, alias := range p.Aliases {
		if strings.Contains(lower, alias) {
			return true
		}
	}
	return false
}

// unicodeRange is a set of inclusive [lo, hi] rune ranges, composed the way
// golang.org/x/text/unicode/rangetable builds custom range tables, rather than repeating
// if r >= lo && r <= hi chains per policy.
type unicodeRange struct {
	ranges [][2]rune
}

func rangeOf(pairs ...[2]rune) *unicodeRange {
	return &unicodeRange{ranges: pairs}
}

func (u *unicodeRange) Contains(r rune) bool {
	for _, pr := range u.ranges {
		if r >= pr[0] && r <= pr[1] {
			return true
		}
	}
	return false
}

func (u *unicodeRange) CountIn(s string) int {
	n := 0
	for _, r := range s {
		if u.Contains(r) {
			n++
		}
	}
	return n
}

var (
	rangeCyrillic  = rangeOf([2]rune{0x0400, 0x04FF})
	rangeGreek     = rangeOf([2]rune{0x0370, 0x03FF})
	rangeDevanagari = rangeOf([2]rune{0x0900, 0x097F})
	rangeBengali   = rangeOf([2]rune{0x0980, 0x09FF})
	rangeGurmukhi  = rangeOf([2]rune{0x0A00, 0x0A7F})
	rangeGujarati  = rangeOf([2]rune{0x0A80, 0x0AFF})
	rangeOriya     = rangeOf([2]rune{0x0B00, 0x0B7F})
	rangeTamil     = rangeOf([2]rune{0x0B80, 0x0BFF})
	rangeTelugu    = rangeOf([2]rune{0x0C00, 0x0C7F})
	rangeKannada   = rangeOf([2]rune{0x0C80, 0x0CFF})
	rangeMalayalam = rangeOf([2]rune{0x0D00, 0x0D7F})
	rangeSinhala   = rangeOf([2]rune{0x0D80, 0x0DFF})
	rangeThai      = rangeOf([2]rune{0x0E00, 0x0E7F})
	rangeLao       = rangeOf([2]rune{0x0E80, 0x0EFF})
	rangeTibetan   = rangeOf([2]rune{0x0F00, 0x0FFF})
	rangeMyanmar   = rangeOf([2]rune{0x1000, 0x109F})
	rangeGeorgian  = rangeOf([2]rune{0x10A0, 0x10FF})
	rangeArabic    = rangeOf([2]rune{0x0600, 0x06FF})
	rangeHebrew    = rangeOf([2]rune{0x0590, 0x05FF})
	rangeArmenian  = rangeOf([2]rune{0x0530, 0x058F})
	rangeSyriac    = rangeOf([2]rune{0x0700, 0x074F})
	rangeHan       = rangeOf([2]rune{0x4E00, 0x9FFF}, [2]rune{0x3400, 0x4DBF})
	rangeHangul    = rangeOf([2]rune{0xAC00, 0xD7A3}, [2]rune{0x1100, 0x11FF})
	rangeHiragana  = rangeOf([2]rune{0x3040, 0x309F})
	rangeKatakana  = rangeOf([2]rune{0x30A0, 0x30FF})

	rangeArabicDiacritics = rangeOf([2]rune{0x064B, 0x065F}, [2]rune{0x0670, 0x0670}, [2]rune{0x06D6, 0x06ED})
	rangeHebrewNiqqud     = rangeOf([2]rune{0x0591, 0x05C7})
)

// scriptBlocks mirrors original_source/modules/language_policies.py's SCRIPT_BLOCKS table,
// used to classify the dominant script of a candidate string for validation rule 5.
var scriptBlocks = map[string]*unicodeRange{
	"Devanagari": rangeDevanagari,
	"Bengali":    rangeBengali,
	"Gurmukhi":   rangeGurmukhi,
	"Gujarati":   rangeGujarati,
	"Oriya":      rangeOriya,
	"Tamil":      rangeTamil,
	"Telugu":     rangeTelugu,
	"Kannada":    rangeKannada,
	"Malayalam":  rangeMalayalam,
	"Sinhala":    rangeSinhala,
	"Thai":       rangeThai,
	"Lao":        rangeLao,
	"Tibetan":    rangeTibetan,
	"Myanmar":    rangeMyanmar,
	"Georgian":   rangeGeorgian,
	"Arabic":     rangeArabic,
	"Hebrew":     rangeHebrew,
	"Cyrillic":   rangeCyrillic,
	"Greek":      rangeGreek,
	"Armenian":   rangeArmenian,
	"Syriac":     rangeSyriac,
	"Han":        rangeHan,
	"Hangul":     rangeHangul,
	"Hiragana":   rangeHiragana,
	"Katakana":   rangeKatakana,
}

// ScriptPolicies is the ordered table of per-language script-enforcement rules, ported
// from original_source/modules/language_policies.py's _SCRIPT_POLICIES tuple.
var ScriptPolicies = []ScriptPolicy{
	{"serbian_cyrillic", []string{"serbian", "sr", "sr-rs", "sr_cyrl", "sr-cyrl"}, "Cyrillic", rangeCyrillic,
		"Always respond in Serbian Cyrillic (ћирилица); do NOT use Latin script."},
	{"russian_cyrillic", []string{"russian", "ru", "ru-ru"}, "Cyrillic", rangeCyrillic,
		"Always respond in Russian Cyrillic; do NOT use Latin letters or transliteration."},
	{"ukrainian_cyrillic", []string{"ukrainian", "uk", "uk-ua"}, "Cyrillic", rangeCyrillic,
		"Always respond in Ukrainian Cyrillic; do NOT use Latin letters or transliteration."},
	{"bulgarian_cyrillic", []string{"bulgarian", "bg", "bg-bg"}, "Cyrillic", rangeCyrillic,
		"Always respond in Bulgarian Cyrillic; do NOT use Latin letters or transliteration."},
	{"greek", []string{"greek", "el", "el-gr"}, "Greek", rangeGreek,
		"Always respond in Greek script with proper tonos/dialytika accents; do NOT use Latin letters or transliteration."},
	{"hindi_devanagari", []string{"hindi", "hi", "hi-in"}, "Devanagari", rangeDevanagari,
		"Always respond in Devanagari script; include matras and do NOT use Latin script or transliteration."},
	{"marathi_devanagari", []string{"marathi", "mr", "mr-in"}, "Devanagari", rangeDevanagari,
		"Always respond in Devanagari script; include matras and do NOT use Latin script or transliteration."},
	{"sanskrit_devanagari", []string{"sanskrit", "sa"}, "Devanagari", rangeDevanagari,
		"Always respond in Devanagari script; include matras and do NOT use Latin script or transliteration."},
	{"bengali_script", []string{"bengali", "bn", "bn-bd", "bangla"}, "Bengali", rangeBengali,
		"Always respond in Bengali script; do NOT use Latin letters or transliteration."},
	{"gujarati_script", []string{"gujarati", "gu", "gu-in"}, "Gujarati", rangeGujarati,
		"Always respond in Gujarati script; do NOT use Latin letters or transliteration."},
	{"tamil_script", []string{"tamil", "ta", "ta-in"}, "Tamil", rangeTamil,
		"Always respond in Tamil script; do NOT use Latin letters or transliteration."},
	{"telugu_script", []string{"telugu", "te", "te-in"}, "Telugu", rangeTelugu,
		"Always respond in Telugu script; do NOT use Latin letters or transliteration."},
	{"kannada_script", []string{"kannada", "kn", "kn-in"}, "Kannada", rangeKannada,
		"Always respond ONLY in Kannada script (Unicode U+0C80-U+0CFF); do NOT use Latin letters, transliteration, or any other script (e.g., Tamil, Devanagari, Georgian, Arabic). Use one script consistently across the entire response; if you cannot respond in Kannada script, return an empty string."},
	{"malayalam_script", []string{"malayalam", "ml", "ml-in"}, "Malayalam", rangeMalayalam,
		"Always respond in Malayalam script; do NOT use Latin letters or transliteration."},
	{"punjabi_gurmukhi", []string{"punjabi", "pa", "pa-in"}, "Gurmukhi", rangeGurmukhi,
		"Always respond in Gurmukhi script for Punjabi; do NOT use Latin letters or Shahmukhi/Arabic transliteration unless explicitly requested."},
	{"sinhala_script", []string{"sinhala", "si", "si-lk"}, "Sinhala", rangeSinhala,
		"Always respond in Sinhala script; do NOT use Latin letters or transliteration."},
	{"lao_script", []string{"lao", "lo", "lo-la"}, "Lao", rangeLao,
		"Always respond in Lao script; do NOT use Latin letters or transliteration."},
	{"khmer_script", []string{"khmer", "km", "km-kh", "cambodian"}, "Khmer", rangeOf([2]rune{0x1780, 0x17FF}),
		"Always respond in Khmer script; do NOT use Latin letters or transliteration."},
	{"burmese_script", []string{"burmese", "myanmar", "my"}, "Myanmar", rangeMyanmar,
		"Always respond in Burmese (Myanmar) script; do NOT use Latin letters or transliteration."},
	{"thai_script", []string{"thai", "th"}, "Thai", rangeThai,
		"Always respond in Thai script; do NOT use Latin letters or transliteration."},
	{"georgian_script", []string{"georgian", "ka", "ka-ge"}, "Georgian", rangeGeorgian,
		"Always respond in Georgian script; do NOT use Latin letters or transliteration."},
	{"armenian_script", []string{"armenian", "hy", "hy-am"}, "Armenian", rangeArmenian,
		"Always respond in Armenian script; do NOT use Latin letters or transliteration."},
	{"syriac_script", []string{"syriac", "syr", "syc"}, "Syriac", rangeSyriac,
		"Always respond in Syriac script; do NOT use Latin letters or transliteration."},
}

// extraNonLatinHints covers languages that expect non-Latin output but have no dedicated
// ScriptPolicy above (e.g. CJK family, handled by segmentation rules instead of a single
// script range).
var extraNonLatinHints = []string{
	"arabic", "ar", "hebrew", "he", "iw", "chinese", "zh", "zh-cn", "zh-tw",
	"japanese", "ja", "korean", "ko", "cyrillic", "urdu", "ur",
	"myanmar", "burmese", "khmer", "km", "cambodian", "thai", "th", "lao", "lo",
	"georgian", "ka", "armenian", "hy", "syriac", "syr", "sinhala", "si",
}

var nonLatinLanguageHints = buildNonLatinHintSet()

func buildNonLatinHintSet() []string {
	set := map[string]bool{}
	var out []string
	add := func(s string) {
		if !set[s] {
			set[s] = true
			out = append(out, s)
		}
	}
	for _, p := range ScriptPolicies {
		for _, alias := range p.Aliases {
			add(strings.ToLower(alias))
		}
	}
	for _, hint := range extraNonLatinHints {
		add(hint)
	}
	return out
}

// IsNonLatinLanguageHint reports whether targetLanguage normally expects non-Latin output.
func IsNonLatinLanguageHint(targetLanguage string) bool {
	lower := strings.ToLower(targetLanguage)
	for _, hint := range nonLatinLanguageHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// ScriptPolicyFor returns the script policy associated with targetLanguage, if any.
func ScriptPolicyFor(targetLanguage string) (ScriptPolicy, bool) {
	for _, p := range ScriptPolicies {
		if p.Matches(targetLanguage) {
			return p, true
		}
	}
	return ScriptPolicy{}, false
}

// ScriptPromptInstructions returns the prompt lines needed to enforce targetLanguage's
// script, or nil if the language has no script policy.
func ScriptPromptInstructions(targetLanguage string) []string {
	policy, ok := ScriptPolicyFor(targetLanguage)
	if !ok {
		return nil
	}
	return []string{policy.Instruction, ScriptEnforcementSuffix}
}

// ScriptCounts returns counts of matched characters per known script block in value.
func ScriptCounts(value string) map[string]int {
	counts := map[string]int{}
	for label, block := range scriptBlocks {
		if n := block.CountIn(value); n > 0 {
			counts[label] = n
		}
	}
	return counts
}

// DiacriticRequirement describes a language's required diacritic range, used by rule 4 of
// ValidationPolicy.
type DiacriticRequirement struct {
	Aliases      []string
	Pattern      *unicodeRange
	Label        string
	ScriptRange  *unicodeRange
}

// DiacriticRequirements mirrors translation_validation.py's _DIACRITIC_PATTERNS.
var DiacriticRequirements = []DiacriticRequirement{
	{[]string{"arabic", "ar"}, rangeArabicDiacritics, "Arabic diacritics (tashkil)", rangeArabic},
	{[]string{"hebrew", "he", "iw"}, rangeHebrewNiqqud, "Hebrew niqqud", rangeHebrew},
}
