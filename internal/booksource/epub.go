package booksource

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mholt/archiver/v3"

	"github.com/fifosk/ebook-pipeline/internal/engine"
)

var (
	htmlTagPattern   = regexp.MustCompile(`<[^>]*>`)
	sentenceSplitter = regexp.MustCompile(`(?s)([.!?…]+)\s+`)
	htmlContentExt   = map[string]bool{".xhtml": true, ".html": true, ".htm": true}
)

// EPUBSource unpacks an EPUB (a zip container per spec §1) into a scratch directory and
// segments every content document's text into sentences, in spine-file order. Grounded on
// internal/core/dependencies' archiver.Unarchive idiom for the unzip step; the Python
// original's ebooklib-based chapter walk has no direct pack equivalent, so the content-file
// ordering here falls back to lexical path order, which is how EPUB content files are
// conventionally named (chapter01.xhtml, chapter02.xhtml, ...).
type EPUBSource struct {
	sentences []engine.Sentence
}

// NewEPUBSource extracts path into a fresh subdirectory of scratchDir and segments every
// XHTML/HTML content document it finds into sentences.
func NewEPUBSource(path, scratchDir string) (*EPUBSource, error) {
	extractDir, err := os.MkdirTemp(scratchDir, "epub-*")
	if err != nil {
		return nil, err
	}
	if err := archiver.NewZip().Unarchive(path, extractDir); err != nil {
		return nil, err
	}

	var contentFiles []string
	err = filepath.Walk(extractDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if htmlContentExt[strings.ToLower(filepath.Ext(p))] {
			contentFiles = append(contentFiles, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(contentFiles)

	var sentences []engine.Sentence
	for _, file := range contentFiles {
		raw, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		for _, s := range segmentIntoSentences(stripHTMLTags(string(raw))) {
			sentences = append(sentences, engine.Sentence{
				Index:  len(sentences),
				Number: len(sentences) + 1,
				Text:   s,
			})
		}
	}
	return &EPUBSource{sentences: sentences}, nil
}

func (e *EPUBSource) Sentences() ([]engine.Sentence, error) {
	return e.sentences, nil
}

func (e *EPUBSource) Len() int {
	return len(e.sentences)
}

// stripHTMLTags removes markup and collapses whitespace, leaving plain running text.
func stripHTMLTags(html string) string {
	withoutTags := htmlTagPattern.ReplaceAllString(html, " ")
	withoutTags = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&#39;", "'", "&quot;", `"`).Replace(withoutTags)
	return strings.Join(strings.Fields(withoutTags), " ")
}

// segmentIntoSentences splits plain text on sentence-ending punctuation followed by
// whitespace, dropping empty fragments. This is a coarse default; a production EPUB
// pipeline would defer to language-aware segmentation, which spec §1 places out of core
// scope (SentenceSource is an injected collaborator).
func segmentIntoSentences(text string) []string {
	parts := sentenceSplitter.Split(text, -1)
	seps := sentenceSplitter.FindAllString(text, -1)

	out := make([]string, 0, len(parts))
	for i, part := range parts {
		sentence := strings.TrimSpace(part)
		if i < len(seps) {
			sentence += strings.TrimSpace(seps[i])
		}
		sentence = strings.TrimSpace(sentence)
		if sentence != "" {
			out = append(out, sentence)
		}
	}
	return out
}
