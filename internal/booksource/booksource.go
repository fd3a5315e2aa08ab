// Package booksource provides a concrete SentenceSource (spec §1 "out of scope — specified
// only by the interface the core needs") backed by the subtitle parser the teacher already
// carries, so the out-of-core interface has at least one real, exercised adapter instead of
// being dead code.
package booksource

import (
	"fmt"
	"strings"

	"github.com/fifosk/ebook-pipeline/internal/core/parser"
	"github.com/fifosk/ebook-pipeline/internal/engine"
)

// Source produces an ordered, finite sequence of sentence strings from a parsed subtitle
// file (spec §1 "SentenceSource producing an ordered finite sequence of sentence strings").
type Source interface {
	Sentences() ([]engine.Sentence, error)
	Len() int
}

// SubtitleSource adapts a parsed SRT/ASS file's lines into engine.Sentence values, one
// sentence per subtitle line, numbered from 1.
type SubtitleSource struct {
	file *parser.SubtitleFile
}

// NewSubtitleSource parses path (SRT or ASS, dispatched by parser.ParseFile's extension
// check) and wraps it as a SentenceSource.
func NewSubtitleSource(path string) (*SubtitleSource, error) {
	file, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("booksource: parsing %s: %w", path, err)
	}
	return &SubtitleSource{file: file}, nil
}

// Sentences returns every non-blank subtitle line as a Sentence, in file order. Index is
// 0-based within this source; Number is the stable 1-based position, matching spec §3's
// Sentence entity.
func (s *SubtitleSource) Sentences() ([]engine.Sentence, error) {
	out := make([]engine.Sentence, 0, len(s.file.Lines))
	for _, line := range s.file.Lines {
		text := strings.TrimSpace(stripSubtitleMarkup(line.Text))
		if text == "" {
			continue
		}
		out = append(out, engine.Sentence{
			Index:  len(out),
			Number: len(out) + 1,
			Text:   text,
		})
	}
	return out, nil
}

// Len reports the parser's SubtitleFile.LineCount: the number of subtitle lines it kept
// (cues with empty text are dropped). It can exceed len(Sentences()), since a line that is
// empty after markup stripping yields no sentence.
func (s *SubtitleSource) Len() int {
	return s.file.LineCount
}

// stripSubtitleMarkup removes ASS/SRT inline override tags ("{\an8}", "<i>") that are
// rendering hints, not translatable text.
func stripSubtitleMarkup(text string) string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteByte(text[i])
			}
		}
	}
	stripped := b.String()
	stripped = strings.ReplaceAll(stripped, "<i>", "")
	stripped = strings.ReplaceAll(stripped, "</i>", "")
	stripped = strings.ReplaceAll(stripped, "<b>", "")
	stripped = strings.ReplaceAll(stripped, "</b>", "")
	stripped = strings.ReplaceAll(stripped, `\N`, " ")
	stripped = strings.ReplaceAll(stripped, `\n`, " ")
	return stripped
}
