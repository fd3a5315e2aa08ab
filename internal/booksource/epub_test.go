package booksource

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeTestEPUB(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "book.epub")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating epub fixture: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	files := map[string]string{
		"OEBPS/chapter01.xhtml": `<html><body><p>Hello there. How are you?</p></body></html>`,
		"OEBPS/chapter02.xhtml": `<html><body><p>This is the second chapter!</p></body></html>`,
	}
	for name, content := range files {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", name, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("writing zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return path
}

func TestEPUBSourceSegmentsSentencesInFileOrder(t *testing.T) {
	dir := t.TempDir()
	epubPath := writeTestEPUB(t, dir)

	source, err := NewEPUBSource(epubPath, dir)
	if err != nil {
		t.Fatalf("NewEPUBSource() error: %v", err)
	}

	sentences, err := source.Sentences()
	if err != nil {
		t.Fatalf("Sentences() error: %v", err)
	}
	if len(sentences) != 3 {
		t.Fatalf("expected 3 sentences across both chapters, got %d: %+v", len(sentences), sentences)
	}
	want := []string{"Hello there.", "How are you?", "This is the second chapter!"}
	for i, w := range want {
		if sentences[i].Text != w {
			t.Errorf("sentence %d: expected %q, got %q", i, w, sentences[i].Text)
		}
		if sentences[i].Number != i+1 {
			t.Errorf("sentence %d: expected number %d, got %d", i, i+1, sentences[i].Number)
		}
	}
	if source.Len() != 3 {
		t.Errorf("expected Len() == 3, got %d", source.Len())
	}
}
