// ebook-pipeline is the CLI entrypoint for the translation pipeline: it ingests an EPUB or
// subtitle file, wires the TranslationEngine/MediaEngine/BatchExporter stages behind the
// PipelineCoordinator, and persists job/chunk state and metadata lookups as it goes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fifosk/ebook-pipeline/internal/booksource"
	"github.com/fifosk/ebook-pipeline/internal/chunkstore"
	"github.com/fifosk/ebook-pipeline/internal/config"
	"github.com/fifosk/ebook-pipeline/internal/core/ai"
	"github.com/fifosk/ebook-pipeline/internal/core/db"
	"github.com/fifosk/ebook-pipeline/internal/core/tokenizer"
	"github.com/fifosk/ebook-pipeline/internal/core/watcher"
	"github.com/fifosk/ebook-pipeline/internal/engine"
	"github.com/fifosk/ebook-pipeline/internal/jobstore"
	"github.com/fifosk/ebook-pipeline/internal/llmbatch"
	"github.com/fifosk/ebook-pipeline/internal/metadata"
	"github.com/fifosk/ebook-pipeline/internal/metadata/providers"
	"github.com/fifosk/ebook-pipeline/internal/progress"
	"github.com/fifosk/ebook-pipeline/internal/translate"
	"github.com/fifosk/ebook-pipeline/internal/workerpool"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Fatalf("panic: %v", r)
		}
	}()

	sourcePath := flag.String("source", "", "Path to an .epub or subtitle (.srt/.vtt/.ass) file")
	title := flag.String("title", "", "Title to use for the metadata lookup")
	author := flag.String("author", "", "Author/series name for the metadata lookup")
	targets := flag.String("targets", "", "Comma-separated target languages (overrides config)")
	batchSize := flag.Int("batch-size", 10, "Sentences per LLM batch request (spec §4.9.2)")
	workDir := flag.String("workdir", "", "Scratch directory for job/chunk/metadata state (defaults to config)")
	outDir := flag.String("out", "", "Output directory for translated text (defaults to <workdir>/output)")
	scanDropFolder := flag.Bool("scan-drop-folder", false, "Scan the configured drop folder and auto-enqueue any recognized sources, then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config.Load(): %v", err)
	}
	if *targets != "" {
		cfg.TargetLanguages = strings.Split(*targets, ",")
	}
	root := *workDir
	if root == "" {
		root = cfg.ScratchDir
	}
	if root == "" {
		root = "./scratch"
	}

	jobs, err := jobstore.New(filepath.Join(root, "jobs"))
	if err != nil {
		log.Fatalf("jobstore.New(): %v", err)
	}
	chunks := chunkstore.New(filepath.Join(root, "jobs"), func(jobID, relativePath string) string {
		return filepath.Join(jobID, relativePath)
	})

	if *scanDropFolder {
		runDropFolderScan(cfg, jobs)
		return
	}

	if *sourcePath == "" {
		fmt.Println("no -source given; pass -source or -scan-drop-folder")
		flag.Usage()
		os.Exit(2)
	}
	if len(cfg.TargetLanguages) == 0 {
		log.Fatalf("no target languages configured; pass -targets or set target_languages in config")
	}

	source, err := openSource(*sourcePath, root)
	if err != nil {
		log.Fatalf("openSource(%s): %v", *sourcePath, err)
	}
	sentences, err := source.Sentences()
	if err != nil {
		log.Fatalf("segmenting %s: %v", *sourcePath, err)
	}
	fmt.Printf("ingested %d sentences from %s\n", len(sentences), *sourcePath)

	job, err := jobs.Create(jobstore.Job{
		JobType:        classifyJobType(*sourcePath),
		OwnerUserID:    "cli",
		RequestPayload: map[string]any{"source_path": *sourcePath, "title": *title, "target_languages": cfg.TargetLanguages},
	})
	if err != nil {
		log.Fatalf("jobs.Create(): %v", err)
	}
	fmt.Printf("job %s created (%s)\n", job.JobID, job.JobType)

	if *title != "" {
		lookupCoverMetadata(cfg, *title, *author, filepath.Join(root, "metadata-cache"))
	}

	translationEngine, err := buildTranslationEngine(cfg, *batchSize, len(sentences))
	if err != nil {
		log.Fatalf("buildTranslationEngine(): %v", err)
	}

	mediaEngine := engine.NewMediaEngine(nil, engine.MediaOptions{TotalSentences: len(sentences)})

	output := *outDir
	if output == "" {
		output = filepath.Join(root, "output")
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		log.Fatalf("creating output dir: %v", err)
	}
	exporter := engine.NewBatchExporter(cfg.WindowSize, output, 0, exportWindowAndPersistChunk(output, chunks, job.JobID))

	coordinator := engine.NewCoordinator(translationEngine, mediaEngine, exporter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		fmt.Println("interrupt received, stopping after the in-flight batch")
		coordinator.Cancel()
	}()

	if _, err := jobs.Mutate(job.JobID, func(j jobstore.Job) jobstore.Job {
		j.Status = jobstore.StatusRunning
		return j
	}); err != nil {
		log.Fatalf("jobs.Mutate(running): %v", err)
	}

	runErr := coordinator.Run(ctx, engine.Config{
		SourceLanguage:         "english",
		TargetLanguages:        cfg.TargetLanguages,
		Sentences:              sentences,
		QueueSize:              cfg.QueueSize,
		MediaConsumers:         cfg.MediaConsumers,
		WindowSize:             cfg.WindowSize,
		OutputDir:              output,
		IncludeTransliteration: cfg.IncludeTransliteration,
	})

	finalStatus := jobstore.StatusCompleted
	if runErr != nil {
		finalStatus = jobstore.StatusFailed
	}
	if _, err := jobs.Mutate(job.JobID, func(j jobstore.Job) jobstore.Job {
		j.Status = finalStatus
		return j
	}); err != nil {
		log.Printf("jobs.Mutate(final): %v", err)
	}
	if runErr != nil {
		log.Fatalf("pipeline run failed: %v", runErr)
	}
	fmt.Printf("job %s completed, output written to %s\n", job.JobID, output)
}

func classifyJobType(path string) jobstore.JobType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt", ".vtt", ".ass":
		return jobstore.JobTypeSubtitle
	default:
		return jobstore.JobTypePipeline
	}
}

func openSource(path, scratchDir string) (booksource.Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		return booksource.NewEPUBSource(path, scratchDir)
	default:
		return booksource.NewSubtitleSource(path)
	}
}

// buildTranslationEngine wires a TranslationEngine against the real LLM transport the
// configured provider exposes (internal/core/ai's adapters satisfy llmbatch.Client via
// their Chat methods), plus the translation-memory cache, transliterator, a bounded worker
// pool for intra-batch fan-out, and a token-budget-aware batch splitter.
func buildTranslationEngine(cfg *config.Config, batchSize, totalSentences int) (*engine.TranslationEngine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	factory := ai.NewProviderFactory(cfg)
	chatClient, err := factory.CreateChatClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}
	llmClient := llmbatch.New(chatClient, cfg.Model)

	tracker := progress.New(totalSentences)

	var memory *translate.Memory
	if cacheDir := cfg.ScratchDir; cacheDir != "" {
		cachePath := filepath.Join(cacheDir, "translation-memory.db")
		if err := os.MkdirAll(cacheDir, 0o755); err == nil {
			if cache, err := db.Open(cachePath); err == nil {
				memory = translate.NewMemory(cache)
			}
		}
	}

	pool := workerpool.NewThreadPool(context.Background(), 4, nil)

	e := engine.New(engine.ProviderLLM, cfg.Model)
	e.LLM = llmClient
	e.Tracker = tracker
	e.Memory = memory
	e.Pool = pool
	e.BatchSize = engine.NormalizeBatchSize(batchSize)
	e.IncludeTransliteration = cfg.IncludeTransliteration
	if cfg.IncludeTransliteration {
		e.Transliterator = translate.New(translate.ModeDefault, llmClient, tracker)
	}
	e.TokenEstimator = tokenizer.NewEstimator()
	e.MaxBatchTokens = 3000

	return e, nil
}

// exportWindowAndPersistChunk writes a window's translations to a plain-text file in dir
// and mirrors the window as a chunkstore.Chunk under jobID, so a resumed run can recover
// exactly which ranges already completed (spec §4.11/§4.14).
func exportWindowAndPersistChunk(dir string, chunks *chunkstore.Store, jobID string) engine.ExportFunc {
	var written []chunkstore.Chunk
	return func(window engine.BatchWindow) error {
		path := filepath.Join(dir, window.RangeFragment()+".txt")
		var b strings.Builder
		for _, item := range window.Items {
			fmt.Fprintf(&b, "[%d] (%s) %s\n", item.Number, item.TargetLanguage, item.Translation)
			if item.HasTransliteration {
				fmt.Fprintf(&b, "    %s\n", item.Transliteration)
			}
		}
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			return err
		}

		sentences := make([]any, 0, len(window.Items))
		for _, item := range window.Items {
			sentences = append(sentences, map[string]any{
				"number": item.Number, "target_language": item.TargetLanguage, "translation": item.Translation,
			})
		}
		chunk := chunkstore.Chunk{
			ChunkID:       window.RangeFragment(),
			RangeFragment: window.RangeFragment(),
			StartSentence: window.FirstNumber,
			EndSentence:   window.LastNumber,
			SentenceCount: len(window.Items),
			Sentences:     sentences,
		}
		// Write prunes chunk files it is not given, so every window of this run is passed.
		written = append(written, chunk)
		_, err := chunks.Write(jobID, written)
		return err
	}
}

// lookupCoverMetadata runs the fallback-chain metadata lookup (spec §4.12) for a book title
// and reports what it found; failures are logged, not fatal, since metadata is cosmetic.
func lookupCoverMetadata(cfg *config.Config, title, author, cacheDir string) {
	cache, err := metadata.NewCache(cacheDir, 7*24*time.Hour)
	if err != nil {
		log.Printf("metadata.NewCache(): %v", err)
		return
	}
	clients := map[metadata.Source]metadata.Client{
		metadata.SourceOpenLibrary: providers.NewOpenLibrary(),
		metadata.SourceGoogleBooks: providers.NewGoogleBooks(cfg.GoogleBooksAPIKey),
		metadata.SourceWikipedia:   providers.NewWikipedia(),
	}
	pipeline := metadata.NewPipeline(metadata.DefaultChains(clients), cache, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	result, err := pipeline.Lookup(ctx, metadata.Query{MediaType: metadata.MediaBook, Title: title, Author: author}, metadata.DefaultOptions())
	if err != nil {
		log.Printf("metadata lookup: %v", err)
		return
	}
	if result == nil {
		fmt.Println("no metadata found")
		return
	}
	sources := make([]string, len(result.ContributingSources))
	for i, s := range result.ContributingSources {
		sources[i] = string(s)
	}
	fmt.Printf("metadata: %s (%s, confidence=%s)\n", result.Title, strings.Join(sources, ","), result.Confidence)
}

// runDropFolderScan lists every recognized source file already sitting in the configured
// drop folder and enqueues a job for each, the one-shot equivalent of what a running
// watcher.Watcher would do incrementally (internal/core/watcher.AutoEnqueue).
func runDropFolderScan(cfg *config.Config, jobs *jobstore.Store) {
	dir := cfg.DropFolderDir
	if dir == "" {
		dir = "./drop-folder"
	}
	extensions := map[string]bool{".epub": true, ".srt": true, ".vtt": true, ".ass": true}
	matches, err := watcher.ScanExistingSources(dir, extensions)
	if err != nil {
		log.Fatalf("scanning drop folder %s: %v", dir, err)
	}
	callback := watcher.AutoEnqueue(jobs, &watcher.TouchlessConfig{
		TargetLang:        strings.Join(cfg.TargetLanguages, ","),
		DefaultProfile:    cfg.TouchlessRules.DefaultProfile,
		SubtitleSelection: cfg.TouchlessRules.MultipleSubtitles,
	}, "drop-folder", func(err error) {
		log.Printf("auto-enqueue error: %v", err)
	})
	for _, path := range matches {
		callback(path)
	}
	fmt.Printf("scanned %s: enqueued %d job(s)\n", dir, len(matches))
}
