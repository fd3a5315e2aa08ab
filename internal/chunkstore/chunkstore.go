// Package chunkstore implements the ChunkStore (C17): the per-batch sentence payload is
// persisted as an individually rewritable file, with the job's own payload shrunk to
// pointers. Grounded directly on
// original_source/modules/services/job_manager/chunk_persistence.py's write_chunk_metadata.
package chunkstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AudioTrack is one voice's audio descriptor within a chunk, normalized per
// normalize_audio_track_entry (path/url/duration/sampleRate, all optional).
type AudioTrack struct {
	Path       string  `json:"path,omitempty"`
	URL        string  `json:"url,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
}

// Chunk is the persisted form of one BatchWindow (spec §3 "Chunk (persisted)").
type Chunk struct {
	ChunkID           string                `json:"chunk_id"`
	RangeFragment     string                `json:"range_fragment"`
	StartSentence     int                   `json:"start_sentence"`
	EndSentence       int                   `json:"end_sentence"`
	SentenceCount     int                   `json:"sentence_count"`
	Sentences         []any                 `json:"sentences,omitempty"`
	AudioTracks       map[string]AudioTrack `json:"audioTracks,omitempty"`
	TimingTracks      map[string]any        `json:"timingTracks,omitempty"`
	HighlightingPolicy string               `json:"highlighting_policy,omitempty"`
	TimingVersion     string                `json:"timingVersion,omitempty"`
}

// chunkFile is the on-disk envelope written under <job>/metadata/chunk_NNNN.json.
type chunkFile struct {
	Version            int                   `json:"version"`
	ChunkID            string                `json:"chunk_id"`
	RangeFragment      string                `json:"range_fragment"`
	StartSentence      int                   `json:"start_sentence"`
	EndSentence         int                  `json:"end_sentence"`
	SentenceCount      int                   `json:"sentence_count"`
	Sentences          []any                 `json:"sentences"`
	AudioTracks        map[string]AudioTrack `json:"audioTracks,omitempty"`
	TimingTracks       map[string]any        `json:"timingTracks,omitempty"`
	HighlightingPolicy string                `json:"highlighting_policy,omitempty"`
	TimingVersion      string                `json:"timingVersion,omitempty"`
}

// JobChunkRef is what survives in the job's own result payload once heavy keys (sentences,
// raw track maps) have been stripped in favor of a pointer (spec §4.14 "strip heavy keys").
type JobChunkRef struct {
	ChunkID            string                `json:"chunk_id"`
	RangeFragment      string                `json:"range_fragment"`
	StartSentence      int                   `json:"start_sentence"`
	EndSentence        int                   `json:"end_sentence"`
	SentenceCount      int                   `json:"sentence_count"`
	MetadataPath       string                `json:"metadata_path,omitempty"`
	MetadataURL        string                `json:"metadata_url,omitempty"`
	AudioTracks        map[string]AudioTrack `json:"audioTracks,omitempty"`
	TimingTracks       map[string]any        `json:"timingTracks,omitempty"`
	HighlightingPolicy string                `json:"highlighting_policy,omitempty"`
	TimingVersion      string                `json:"timingVersion,omitempty"`
}

// URLResolver maps a job-relative metadata path to a servable URL; external to this package
// since URL shape is an HTTP-layer concern out of the core's scope (spec §1).
type URLResolver func(jobID, relativePath string) string

// Store persists chunk files under <root>/<jobID>/metadata/.
type Store struct {
	root     string
	resolve  URLResolver
}

func New(root string, resolve URLResolver) *Store {
	if resolve == nil {
		resolve = func(string, string) string { return "" }
	}
	return &Store{root: root, resolve: resolve}
}

func (s *Store) metadataDir(jobID string) string {
	return filepath.Join(s.root, jobID, "metadata")
}

func formatChunkFilename(index int) string {
	return fmt.Sprintf("chunk_%04d.json", index)
}

// writeFile writes data to destination via a sibling tmp file + rename, so a reader never
// observes a partial write (spec invariant 5).
func writeFile(destination string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(destination), ".chunk-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, destination); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Write persists each chunk with non-empty Sentences to its own file, returning the
// pointer-only refs that belong in the job's result payload, and prunes any chunk_*.json
// file not produced by this call (spec §4.14 "stale-file pruning").
func (s *Store) Write(jobID string, chunks []Chunk) ([]JobChunkRef, error) {
	dir := s.metadataDir(jobID)
	refs := make([]JobChunkRef, 0, len(chunks))
	preserved := make(map[string]bool, len(chunks))

	for index, chunk := range chunks {
		ref := JobChunkRef{
			ChunkID:            chunk.ChunkID,
			RangeFragment:      chunk.RangeFragment,
			StartSentence:      chunk.StartSentence,
			EndSentence:        chunk.EndSentence,
			SentenceCount:      chunk.SentenceCount,
			HighlightingPolicy: chunk.HighlightingPolicy,
			TimingVersion:      chunk.TimingVersion,
		}

		if len(chunk.Sentences) == 0 {
			refs = append(refs, ref)
			continue
		}

		filename := formatChunkFilename(index)
		destination := filepath.Join(dir, filename)
		payload := chunkFile{
			Version:            3,
			ChunkID:            chunk.ChunkID,
			RangeFragment:      chunk.RangeFragment,
			StartSentence:      chunk.StartSentence,
			EndSentence:        chunk.EndSentence,
			SentenceCount:      len(chunk.Sentences),
			Sentences:          chunk.Sentences,
			AudioTracks:        chunk.AudioTracks,
			TimingTracks:       chunk.TimingTracks,
			HighlightingPolicy: chunk.HighlightingPolicy,
			TimingVersion:      chunk.TimingVersion,
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal chunk %d: %w", index, err)
		}
		if err := writeFile(destination, data); err != nil {
			return nil, fmt.Errorf("write chunk %d: %w", index, err)
		}

		relPath := filepath.ToSlash(filepath.Join("metadata", filename))
		ref.MetadataPath = relPath
		ref.MetadataURL = s.resolve(jobID, relPath)
		ref.SentenceCount = len(chunk.Sentences)
		ref.AudioTracks = chunk.AudioTracks
		ref.TimingTracks = chunk.TimingTracks
		preserved[filename] = true
		refs = append(refs, ref)
	}

	if err := s.cleanupStale(dir, preserved); err != nil {
		return nil, err
	}
	return refs, nil
}

// cleanupStale removes any chunk_*.json under dir not named in preserved.
func (s *Store) cleanupStale(dir string, preserved map[string]bool) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "chunk_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if preserved[name] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Read loads a single chunk file by its job-relative metadata path.
func (s *Store) Read(jobID, relativeMetadataPath string) (*Chunk, error) {
	path := filepath.Join(s.root, jobID, filepath.FromSlash(relativeMetadataPath))
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f chunkFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &Chunk{
		ChunkID:            f.ChunkID,
		RangeFragment:      f.RangeFragment,
		StartSentence:      f.StartSentence,
		EndSentence:        f.EndSentence,
		SentenceCount:      f.SentenceCount,
		Sentences:          f.Sentences,
		AudioTracks:        f.AudioTracks,
		TimingTracks:       f.TimingTracks,
		HighlightingPolicy: f.HighlightingPolicy,
		TimingVersion:      f.TimingVersion,
	}, nil
}

// ResolveHighlightingPolicy scans every committed chunk file for jobID and returns the
// dominant highlighting policy, preferring an "estimated"-prefixed policy over any other
// if one is present (spec §4.14: "so the UI displays the worst-case label").
func (s *Store) ResolveHighlightingPolicy(jobID string) (string, error) {
	dir := s.metadataDir(jobID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "chunk_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var f chunkFile
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		if f.HighlightingPolicy == "" {
			continue
		}
		if counts[f.HighlightingPolicy] == 0 {
			order = append(order, f.HighlightingPolicy)
		}
		counts[f.HighlightingPolicy]++
	}

	for _, policy := range order {
		if strings.HasPrefix(policy, "estimated") {
			return policy, nil
		}
	}

	best, bestCount := "", 0
	for _, policy := range order {
		if counts[policy] > bestCount {
			best, bestCount = policy, counts[policy]
		}
	}
	return best, nil
}
