// Package engine implements the staged, concurrent translation pipeline: the
// TranslationEngine (C11), MediaEngine (C12), BatchExporter (C13) stages wired by the
// PipelineCoordinator (C14), plus the data model those stages share.
package engine

import (
	"fmt"

	"github.com/fifosk/ebook-pipeline/internal/core/linter"
)

// Sentence is an immutable unit of source text. The ordered sequence of sentences for a
// run is fixed at stage entry and never rearranged (spec §3).
type Sentence struct {
	Index  int    // 0-based within the selected range
	Number int    // 1-based, globally stable
	Text   string
}

// TargetAssignment is the language label chosen for a sentence by round-robin over the
// user-supplied target-language list. Deterministic given (startIndex, languages).
type TargetAssignment struct {
	Sentence Sentence
	Language string
}

// AssignTargets cycles languages round-robin starting from startIndex, matching the
// testable boundary in spec §8: targets=["ar","en","fr"] over 7 sentences starting at
// sentence 1 yields ["ar","en","fr","ar","en","fr","ar"].
func AssignTargets(sentences []Sentence, languages []string, startIndex int) []TargetAssignment {
	if len(languages) == 0 {
		return nil
	}
	out := make([]TargetAssignment, len(sentences))
	for i, s := range sentences {
		lang := languages[(startIndex+i)%len(languages)]
		out[i] = TargetAssignment{Sentence: s, Language: lang}
	}
	return out
}

// FailureAnnotation formats the structured failure text substituted for a translation or
// transliteration whose retry budget was exhausted (spec §7 "Error kinds").
func FailureAnnotation(stage string, attempts int, reason string) string {
	return fmt.Sprintf("Retry failed for %s after %d attempts: %s", stage, attempts, reason)
}

// TranslationResult is produced by the TranslationEngine in arbitrary completion order,
// tagged with Index for downstream reordering. If Err is non-nil, Translation holds a
// FailureAnnotation rather than raw model noise.
type TranslationResult struct {
	Index            int
	Number           int
	SourceText       string
	TargetLanguage   string
	Translation      string
	Transliteration  string
	HasTransliteration bool
	RetryCount       int
	Err              error
	// QualityIssues holds findings from the post-translation linter quality gate
	// (ASS-tag/bracket damage, source-language residue, glossary drift); non-fatal.
	QualityIssues []linter.Issue
}

// AudioSegment is the opaque handle returned by the injected MediaSynthesizer.
type AudioSegment interface {
	Concat(other AudioSegment) AudioSegment
	ExportMP3(path string, bitrateKbps int) error
}

// MediaSynthesizer is the out-of-core collaborator C12 consumes for per-sentence audio
// and video-frame synthesis (spec §6 "Media synthesizer").
type MediaSynthesizer interface {
	Synthesize(index, number int, sourceText, translation, sourceLang, targetLang string,
		audioMode bool, total int, voiceID string, tempo, readingSpeed float64) (AudioSegment, error)
}

// MediaItem is produced by the MediaEngine; Audio is present iff audio generation is
// enabled for the run.
type MediaItem struct {
	Index           int
	Number          int
	TargetLanguage  string
	Sentence        string
	Translation     string
	Transliteration string
	HasTransliteration bool
	Audio           AudioSegment
	VideoBlock      string
	Err             error
}

// BatchWindow is a contiguous closed [FirstNumber, LastNumber] range of sentences
// flushed together. The boundary is SentencesPerBatch except for the final partial window.
type BatchWindow struct {
	FirstNumber int
	LastNumber  int
	Items       []MediaItem
}

// RangeFragment renders the window's boundary as the zero-padded "FFFF-LLLL" filename
// fragment used by exported artifacts (spec §4.11 "Filename convention").
func (w BatchWindow) RangeFragment() string {
	return fmt.Sprintf("%04d-%04d", w.FirstNumber, w.LastNumber)
}
