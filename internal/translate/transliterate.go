// transliterate.go implements the Transliterator (C8): a local rule-based pass first,
// LLM fallback when the local pass yields nothing usable.
package translate

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/fifosk/ebook-pipeline/internal/llmbatch"
	"github.com/fifosk/ebook-pipeline/internal/prompt"
	"github.com/fifosk/ebook-pipeline/internal/progress"
	"github.com/fifosk/ebook-pipeline/internal/text"
	"github.com/fifosk/ebook-pipeline/internal/validate"
)

// Mode selects the Transliterator's strategy.
type Mode int

const (
	// ModeDefault runs the rule-based engine first, LLM second (spec §4.6 default mode).
	ModeDefault Mode = iota
	// ModePythonOnly runs only the rule-based engine, never falling back to the LLM.
	ModePythonOnly
)

// RuleEngine performs local, dependency-free transliteration. It is intentionally a small
// table-driven rune substitution, the same flavor as internal/core/linter's table-driven
// checks, since original_source treats "rule-based transliteration" as an external library
// this repository does not vendor.
type RuleEngine struct{}

// romanizationTables map a script's characters to a Latin approximation. Only a
// representative subset is provided; unmapped runes pass through unchanged and stay in the
// result, which Transliterator.Transliterate accepts as long as it is non-empty and not a
// placeholder.
var romanizationTables = map[string]map[rune]string{
	"Cyrillic": {
		'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo", 'ж': "zh",
		'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o",
		'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts",
		'ч': "ch", 'ш': "sh", 'щ': "shch", 'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu",
		'я': "ya",
	},
	"Greek": {
		'α': "a", 'β': "v", 'γ': "g", 'δ': "d", 'ε': "e", 'ζ': "z", 'η': "i", 'θ': "th",
		'ι': "i", 'κ': "k", 'λ': "l", 'μ': "m", 'ν': "n", 'ξ': "x", 'ο': "o", 'π': "p",
		'ρ': "r", 'σ': "s", 'ς': "s", 'τ': "t", 'υ': "y", 'φ': "f", 'χ': "ch", 'ψ': "ps",
		'ω': "o",
	},
}

// Transliterate performs a best-effort, script-aware romanization. Returns "" when the
// input has no recognized non-Latin script to romanize, matching the Python engine's
// "empty on unsupported input" contract that triggers the LLM fallback upstream.
func (RuleEngine) Transliterate(input string) string {
	table := tableFor(input)
	if table == nil {
		return ""
	}
	var b strings.Builder
	matched := false
	for _, r := range input {
		if repl, ok := table[unicode.ToLower(r)]; ok {
			matched = true
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	if !matched {
		return ""
	}
	return text.CollapseWhitespace(b.String())
}

func tableFor(input string) map[rune]string {
	for label, table := range romanizationTables {
		for _, r := range input {
			if _, ok := table[unicode.ToLower(r)]; ok {
				_ = label
				return table
			}
		}
	}
	return nil
}

// Transliterator implements C8: rule-based first, LLM fallback second (ModeDefault), or
// rule-based only (ModePythonOnly).
type Transliterator struct {
	Mode    Mode
	Rules   RuleEngine
	LLM     *llmbatch.BatchClient
	Tracker *progress.Tracker
}

// New constructs a Transliterator. llm may be nil when mode is ModePythonOnly.
func New(mode Mode, llm *llmbatch.BatchClient, tracker *progress.Tracker) *Transliterator {
	return &Transliterator{Mode: mode, LLM: llm, Tracker: tracker}
}

// Transliterate resolves one translation's transliteration, per spec §4.6:
//  1. Run the rule-based engine; use it if non-empty, non-failure, non-placeholder.
//  2. Otherwise (ModeDefault only) issue a single-item LLM call, validate it, and fall
//     back to the rule-based result (even if empty) on rejection.
func (t *Transliterator) Transliterate(ctx context.Context, targetLanguage, translation string) (string, error) {
	local := t.Rules.Transliterate(translation)
	if local != "" && !strings.HasPrefix(local, "Retry failed for") && !text.IsPlaceholderTranslation(local) {
		return local, nil
	}
	if t.Mode == ModePythonOnly || t.LLM == nil {
		return local, nil
	}

	systemPrompt := prompt.BuildTransliteration(targetLanguage, translation)
	resp := t.LLM.RequestBatch(ctx, systemPrompt, []llmbatch.Item{{ID: 0, Text: translation}},
		20*time.Second, 1, nil, targetLanguage)
	if resp.Err != nil {
		if t.Tracker != nil {
			t.Tracker.RecordRetry("transliteration", resp.Err.Error())
		}
		return local, nil
	}
	candidate := strings.TrimSpace(resp.RawText)
	outcome := validate.ValidateTransliteration(candidate)
	if !outcome.Accepted {
		if t.Tracker != nil {
			t.Tracker.RecordRetry("transliteration", string(outcome.Reason))
		}
		return local, nil
	}
	return candidate, nil
}

// batchCapableModels lists model tags known to reliably handle JSON batches for
// transliteration, mirroring the engine's per-sentence-vs-batch capability table (C11).
var batchCapableModels = map[string]bool{}

// RegisterBatchCapableModel marks model as able to handle JSON-batched transliteration
// requests, used by TransliterateBatch's capability check.
func RegisterBatchCapableModel(model string) { batchCapableModels[strings.ToLower(model)] = true }

// TransliterateBatch resolves transliterations for multiple translations at once: the
// local pass runs for every item first; if more than one item remains unresolved and the
// model is batch-capable, a single batch LLM call is issued, split per item, and any
// rejected item falls back to the per-item path (spec §4.6 "Batch transliteration").
func (t *Transliterator) TransliterateBatch(ctx context.Context, model, targetLanguage string, translations []string) ([]string, error) {
	out := make([]string, len(translations))
	var pending []int
	for i, tr := range translations {
		local := t.Rules.Transliterate(tr)
		if local != "" && !text.IsPlaceholderTranslation(local) {
			out[i] = local
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out, nil
	}
	if t.Mode == ModePythonOnly || t.LLM == nil || len(pending) <= 1 || !batchCapableModels[strings.ToLower(model)] {
		for _, i := range pending {
			res, err := t.Transliterate(ctx, targetLanguage, translations[i])
			if err != nil {
				return out, err
			}
			out[i] = res
		}
		return out, nil
	}

	items := make([]llmbatch.Item, len(pending))
	for j, i := range pending {
		items[j] = llmbatch.Item{ID: i, Text: translations[i]}
	}
	systemPrompt := prompt.BuildBatch(prompt.BatchOptions{TargetLanguage: targetLanguage, IncludeTransliteration: true})
	resp := t.LLM.RequestBatch(ctx, systemPrompt, items, 30*time.Second, 2, llmbatch.RequiresNonEmptyItems, targetLanguage)
	resultByID := map[int]string{}
	if resp.Err == nil && resp.Payload != nil {
		for _, item := range resp.Payload.Items {
			resultByID[item.ID] = item.Translation
		}
	}
	for _, i := range pending {
		candidate, ok := resultByID[i]
		if ok {
			outcome := validate.ValidateTransliteration(candidate)
			if outcome.Accepted {
				out[i] = candidate
				continue
			}
			if t.Tracker != nil {
				t.Tracker.RecordRetry("transliteration", string(outcome.Reason))
			}
		}
		res, err := t.Transliterate(ctx, targetLanguage, translations[i])
		if err != nil {
			return out, err
		}
		out[i] = res
	}
	return out, nil
}
