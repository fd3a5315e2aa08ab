package engine

import (
	"github.com/fifosk/ebook-pipeline/internal/core/linter"
	"github.com/fifosk/ebook-pipeline/internal/core/ner"
	"github.com/fifosk/ebook-pipeline/internal/core/parser"
)

// BuildGlossary scans sentences for recurring proper nouns (character names, attack
// names, honorific-marked names) and merges them with a project-supplied glossary, which
// always wins on conflict. The result is fed to PromptBuilder so a name stays consistent
// across a whole run instead of drifting batch to batch, and to the post-translation
// quality gate so a glossary term that silently changed form gets flagged.
func BuildGlossary(sentences []Sentence, projectGlossary map[string]string) map[string]string {
	lines := make([]parser.SubtitleLine, len(sentences))
	for i, s := range sentences {
		lines[i] = parser.SubtitleLine{Index: s.Number, Text: s.Text}
	}
	entities := ner.NewScanner().ScanLines(lines)
	return ner.MergeWithProjectGlossary(entities, projectGlossary)
}

// applyQualityGate runs the linter over every completed translation, grouped by target
// language (CheckOptions.TargetLang drives the source-language-residue check, so languages
// can't be mixed in one Check call), and attaches surviving issues back onto the matching
// TranslationResult.
func (e *TranslationEngine) applyQualityGate(sourceLang string, results []TranslationResult) {
	byLanguage := map[string][]int{}
	for i, r := range results {
		if r.Err != nil {
			continue
		}
		byLanguage[r.TargetLanguage] = append(byLanguage[r.TargetLanguage], i)
	}

	for lang, positions := range byLanguage {
		texts := make([]string, len(positions))
		for i, pos := range positions {
			texts[i] = results[pos].Translation
		}
		check := linter.Check(texts, linter.CheckOptions{
			SourceLang: sourceLang,
			TargetLang: lang,
			Glossary:   e.Glossary,
		})
		for _, issue := range check.Issues {
			pos := positions[issue.LineID-1]
			results[pos].QualityIssues = append(results[pos].QualityIssues, issue)
		}
	}
}
