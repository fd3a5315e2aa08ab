package chunkstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteProducesPointerRefs(t *testing.T) {
	root := t.TempDir()
	store := New(root, func(jobID, relPath string) string {
		return "/jobs/" + jobID + "/" + relPath
	})

	chunks := []Chunk{
		{
			ChunkID:       "chunk-0",
			RangeFragment: "0001-0010",
			StartSentence: 1,
			EndSentence:   10,
			Sentences:     []any{"one", "two"},
		},
	}

	refs, err := store.Write("job-1", chunks)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 ref, got %d", len(refs))
	}
	ref := refs[0]
	if ref.MetadataPath != "metadata/chunk_0000.json" {
		t.Errorf("unexpected metadata path: %q", ref.MetadataPath)
	}
	if ref.MetadataURL != "/jobs/job-1/metadata/chunk_0000.json" {
		t.Errorf("unexpected metadata url: %q", ref.MetadataURL)
	}
	if ref.SentenceCount != 2 {
		t.Errorf("expected sentence count 2, got %d", ref.SentenceCount)
	}

	if _, err := os.Stat(filepath.Join(root, "job-1", "metadata", "chunk_0000.json")); err != nil {
		t.Fatalf("expected chunk file to exist: %v", err)
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)
	chunks := []Chunk{{ChunkID: "c0", RangeFragment: "0001-0005", Sentences: []any{"a", "b", "c"}}}

	if _, err := store.Write("job-2", chunks); err != nil {
		t.Fatalf("first Write() error: %v", err)
	}
	first, err := os.ReadFile(filepath.Join(root, "job-2", "metadata", "chunk_0000.json"))
	if err != nil {
		t.Fatalf("reading first write: %v", err)
	}

	if _, err := store.Write("job-2", chunks); err != nil {
		t.Fatalf("second Write() error: %v", err)
	}
	second, err := os.ReadFile(filepath.Join(root, "job-2", "metadata", "chunk_0000.json"))
	if err != nil {
		t.Fatalf("reading second write: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("expected identical file content across repeated writes")
	}
}

func TestWritePrunesStaleChunkFiles(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)

	if _, err := store.Write("job-3", []Chunk{
		{ChunkID: "c0", Sentences: []any{"a"}},
		{ChunkID: "c1", Sentences: []any{"b"}},
	}); err != nil {
		t.Fatalf("initial Write() error: %v", err)
	}

	if _, err := store.Write("job-3", []Chunk{
		{ChunkID: "c0", Sentences: []any{"a"}},
	}); err != nil {
		t.Fatalf("second Write() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "job-3", "metadata", "chunk_0001.json")); !os.IsNotExist(err) {
		t.Fatalf("expected stale chunk_0001.json to be removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "job-3", "metadata", "chunk_0000.json")); err != nil {
		t.Fatalf("expected chunk_0000.json to survive: %v", err)
	}
}

func TestResolveHighlightingPolicyPrefersEstimated(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)

	if _, err := store.Write("job-4", []Chunk{
		{ChunkID: "c0", Sentences: []any{"a"}, HighlightingPolicy: "word_level"},
		{ChunkID: "c1", Sentences: []any{"b"}, HighlightingPolicy: "estimated_sentence"},
	}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	policy, err := store.ResolveHighlightingPolicy("job-4")
	if err != nil {
		t.Fatalf("ResolveHighlightingPolicy() error: %v", err)
	}
	if policy != "estimated_sentence" {
		t.Errorf("expected estimated_sentence to win, got %q", policy)
	}
}
