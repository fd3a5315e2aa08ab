// Package runtime builds the immutable RuntimeContext a pipeline run is bound to:
// resolved directories, LLM endpoint, concurrency knobs, and scratch-space lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ModelProvenance records where the effective model tag came from, for observability.
// Per-job overrides win over the top-level default; both are kept so callers can see why.
type ModelProvenance struct {
	Requested string // top-level RuntimeContext default
	JobValue  string // per-job override, empty if none was set
	Effective string // the value actually used
}

// Context is an immutable, per-invocation bundle. A process may hold several, one per run.
type Context struct {
	WorkingDir string
	OutputDir  string
	TmpDir     string
	BooksDir   string

	LLMEndpoint string
	Model       ModelProvenance

	ThreadCount int
	QueueSize   int
	PipelineOn  bool
	UseRAMDisk  bool

	TranslationProvider     string // "llm" | "googletrans"
	BatchSize               int    // 0 disables LLM batch mode
	SentencesPerOutputFile  int
	IncludeTransliteration  bool
	GenerateAudio           bool
	GenerateVideo           bool
	OutputHTML              bool
	OutputPDF               bool
	JobMaxWorkers           int

	Scratch *ScratchSpace
}

// Options is the raw configuration mapping plus an overrides mapping (env-like), matching
// spec §4.1's construction contract.
type Options struct {
	WorkingDir, OutputDir, TmpDir, BooksDir string
	ProgramRoot                             string // base for relative-path resolution

	LLMEndpoint     string
	TopLevelModel   string
	JobModel        string // per-job override, empty if unset

	ThreadCount            int
	QueueSize              int
	PipelineOn             bool
	UseRAMDisk             bool
	TranslationProvider    string
	BatchSize              int
	SentencesPerOutputFile int
	IncludeTransliteration bool
	GenerateAudio          bool
	GenerateVideo          bool
	OutputHTML             bool
	OutputPDF              bool
	JobMaxWorkers          int
}

// defaultRelative mirrors original_source/modules/config_manager.py's DEFAULT_*_RELATIVE
// constants: each directory kind has a single, fixed default-local fallback name.
func defaultRelative(kind string) string {
	switch kind {
	case "working":
		return "output"
	case "output":
		return filepath.Join("output", "ebook")
	case "tmp":
		return "tmp"
	case "books":
		return "books"
	default:
		return kind
	}
}

// New constructs a frozen Context. Each directory is resolved from two candidates: the
// supplied value (or the default-local path when none is supplied), then the default-local
// path. Each attempt first clears a broken symlink or non-directory at the target path,
// then runs mkdir -p. The first candidate created wins; if none is, the last error is returned.
func New(opts Options) (*Context, error) {
	root := opts.ProgramRoot
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("runtime: resolve program root: %w", err)
		}
	}

	working, err := resolveDirectory(root, opts.WorkingDir, defaultRelative("working"))
	if err != nil {
		return nil, fmt.Errorf("runtime: resolve working_dir: %w", err)
	}
	output, err := resolveDirectory(root, opts.OutputDir, defaultRelative("output"))
	if err != nil {
		return nil, fmt.Errorf("runtime: resolve output_dir: %w", err)
	}
	tmp, err := resolveDirectory(root, opts.TmpDir, defaultRelative("tmp"))
	if err != nil {
		return nil, fmt.Errorf("runtime: resolve tmp_dir: %w", err)
	}
	books, err := resolveDirectory(root, opts.BooksDir, defaultRelative("books"))
	if err != nil {
		return nil, fmt.Errorf("runtime: resolve books_dir: %w", err)
	}

	threadCount := opts.ThreadCount
	if threadCount <= 0 {
		threadCount = 5
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = 20
	}
	endpoint := opts.LLMEndpoint
	if endpoint == "" {
		endpoint = "http://localhost:11434/api/chat"
	}
	provider := opts.TranslationProvider
	if provider == "" {
		provider = "llm"
	}
	sentencesPerFile := opts.SentencesPerOutputFile
	if sentencesPerFile <= 0 {
		sentencesPerFile = 10
	}
	jobMaxWorkers := opts.JobMaxWorkers
	if jobMaxWorkers <= 0 {
		jobMaxWorkers = 2
	}

	topModel := opts.TopLevelModel
	if topModel == "" {
		topModel = "gemma2:27b"
	}
	effective := topModel
	if opts.JobModel != "" {
		effective = opts.JobModel
	}

	scratch, err := NewScratchSpace(tmp, opts.UseRAMDisk)
	if err != nil {
		return nil, fmt.Errorf("runtime: create scratch space: %w", err)
	}

	return &Context{
		WorkingDir:  working,
		OutputDir:   output,
		TmpDir:      tmp,
		BooksDir:    books,
		LLMEndpoint: endpoint,
		Model: ModelProvenance{
			Requested: topModel,
			JobValue:  opts.JobModel,
			Effective: effective,
		},
		ThreadCount:            threadCount,
		QueueSize:              queueSize,
		PipelineOn:             opts.PipelineOn,
		UseRAMDisk:             opts.UseRAMDisk,
		TranslationProvider:    provider,
		BatchSize:              opts.BatchSize,
		SentencesPerOutputFile: sentencesPerFile,
		IncludeTransliteration: opts.IncludeTransliteration,
		GenerateAudio:          opts.GenerateAudio,
		GenerateVideo:          opts.GenerateVideo,
		OutputHTML:             opts.OutputHTML,
		OutputPDF:              opts.OutputPDF,
		JobMaxWorkers:          jobMaxWorkers,
		Scratch:                scratch,
	}, nil
}

// Close tears down resources the context owns (the RAM-backed scratch space, if any).
func (c *Context) Close() error {
	if c.Scratch == nil {
		return nil
	}
	return c.Scratch.Close()
}

// resolveDirectory implements the fallback sequence: user-supplied -> configured default,
// in that order, returning the first candidate that can be created/is writable.
func resolveDirectory(root, value, fallbackRelative string) (string, error) {
	normalize := func(p string) string {
		if p == "" {
			return p
		}
		expanded := expandHome(p)
		if filepath.IsAbs(expanded) {
			return filepath.Clean(expanded)
		}
		return filepath.Join(root, expanded)
	}

	base := value
	if base == "" {
		base = fallbackRelative
	}

	var candidates []string
	seen := map[string]bool{}
	for _, c := range []string{normalize(base), normalize(fallbackRelative)} {
		if !seen[c] {
			candidates = append(candidates, c)
			seen[c] = true
		}
	}

	var lastErr error
	for _, candidate := range candidates {
		cleanupBrokenPath(candidate)
		if err := os.MkdirAll(candidate, 0o755); err != nil {
			lastErr = err
			continue
		}
		return candidate, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate directories configured")
	}
	return "", lastErr
}

// cleanupBrokenPath removes a broken symlink or a non-directory file sitting at path,
// so the subsequent MkdirAll attempt is not blocked by stale state. Mirrors
// config_manager.py's _cleanup_directory_path, limited to the leaf (the common real-world
// case); parent-chain cleanup is left to MkdirAll's own error surfacing.
func cleanupBrokenPath(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if _, statErr := os.Stat(path); statErr != nil {
			os.Remove(path)
		}
		return
	}
	if !info.IsDir() {
		os.RemoveAll(path)
	}
}

func expandHome(p string) string {
	if p == "~" || (len(p) > 1 && p[:2] == "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			if p == "~" {
				return home
			}
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// active holds the scope-local RuntimeContext for the current execution. Go has no
// thread-local primitive; context.Context's value propagation fills that role, matching
// spec §9's "scoped-context replacing singleton config" design note.
type activeKey struct{}

// WithActive returns a derived context.Context carrying this RuntimeContext as the active
// binding, for engines that read the ambient context rather than taking one as a parameter.
func WithActive(ctx context.Context, rc *Context) context.Context {
	return context.WithValue(ctx, activeKey{}, rc)
}

// Active returns the RuntimeContext bound to ctx, or def if none is bound. Mutating the
// returned value is forbidden; RuntimeContext is frozen after construction.
func Active(ctx context.Context, def *Context) *Context {
	if rc, ok := ctx.Value(activeKey{}).(*Context); ok && rc != nil {
		return rc
	}
	return def
}
