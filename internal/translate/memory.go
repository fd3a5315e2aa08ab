package translate

import (
	"fmt"

	"github.com/fifosk/ebook-pipeline/internal/core/db"
)

// Memory is the translation-memory layer referenced in SPEC_FULL.md's DOMAIN STACK table:
// an exact+fuzzy cache of accepted translations/transliterations, generalizing
// internal/core/db.Cache from subtitle-line keys to sentence-text+target-language keys so
// the engine can avoid redundant LLM calls across runs.
type Memory struct {
	cache *db.Cache
}

// NewMemory wraps an already-opened db.Cache as translation memory.
func NewMemory(cache *db.Cache) *Memory {
	return &Memory{cache: cache}
}

func langPair(sourceLang, targetLang string) string {
	return fmt.Sprintf("%s->%s", sourceLang, targetLang)
}

// Lookup returns a cached translation for sentence, preferring an exact match and falling
// back to a fuzzy match above threshold.
func (m *Memory) Lookup(sourceLang, targetLang, sentence string, fuzzyThreshold float64) (string, bool) {
	if m == nil || m.cache == nil {
		return "", false
	}
	pair := langPair(sourceLang, targetLang)
	if exact, ok := m.cache.GetExactMatch(sentence, pair); ok {
		return exact, true
	}
	if entry, ok := m.cache.GetFuzzyMatch(sentence, pair, fuzzyThreshold); ok {
		return entry.TranslatedText, true
	}
	return "", false
}

// Remember persists an accepted translation for reuse by later runs.
func (m *Memory) Remember(sourceLang, targetLang, sentence, translation string) {
	if m == nil || m.cache == nil {
		return
	}
	_ = m.cache.SaveTranslation(sentence, translation, langPair(sourceLang, targetLang))
}
