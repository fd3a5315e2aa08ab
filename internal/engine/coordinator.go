package engine

// The PipelineCoordinator generalizes internal/core/pipeline.Pipeline's single synchronous
// Execute/translateBatchWithRetry loop into three independently staged goroutine groups,
// keeping its self-healing split-batch retry idea (as the translation stage's
// response-level retry) and its cache-then-translate ordering (as a translation-memory
// lookup before any LLM call).

import (
	"context"
)

// Config bundles everything PipelineCoordinator needs to wire one run.
type Config struct {
	SourceLanguage         string
	TargetLanguages        []string
	Sentences              []Sentence
	StartIndex             int
	QueueSize              int
	MediaConsumers         int
	WindowSize             int
	OutputDir              string
	IncludeTransliteration bool
	// ProjectGlossary seeds the run's glossary; NER-scanned entities are merged underneath
	// it (project entries win on conflict). See BuildGlossary.
	ProjectGlossary map[string]string
}

// PipelineCoordinator wires the three stages' queues, starts their goroutines, and owns
// the single StopSignal used for cooperative shutdown across all of them (spec §5
// "Cancellation semantics").
type PipelineCoordinator struct {
	Translation *TranslationEngine
	Media       *MediaEngine
	Exporter    *BatchExporter
	Stop        *StopSignal
}

// NewCoordinator constructs a PipelineCoordinator from already-configured stage engines.
func NewCoordinator(translation *TranslationEngine, media *MediaEngine, exporter *BatchExporter) *PipelineCoordinator {
	return &PipelineCoordinator{Translation: translation, Media: media, Exporter: exporter, Stop: NewStopSignal()}
}

// Run starts all three stages and blocks until the exporter reports completion (stream
// drained, or ctx cancelled / Stop triggered). It is the engine-level equivalent of the
// teacher's Pipeline.Execute, but staged rather than step-by-step synchronous.
func (p *PipelineCoordinator) Run(ctx context.Context, cfg Config) error {
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	translationOut := make(chan *TranslationResult, queueSize)
	mediaOut := make(chan *MediaItem, queueSize)
	done := make(chan error, 1)

	mediaConsumers := cfg.MediaConsumers
	if mediaConsumers < 1 {
		mediaConsumers = 1
	}

	if p.Translation.Glossary == nil {
		p.Translation.Glossary = BuildGlossary(cfg.Sentences, cfg.ProjectGlossary)
	}

	go p.Translation.Start(ctx, cfg.Sentences, cfg.SourceLanguage, cfg.TargetLanguages, translationOut, p.Stop, 1)
	go p.Media.Start(ctx, cfg.SourceLanguage, translationOut, mediaOut, p.Stop, mediaConsumers)
	go p.Exporter.Start(ctx, mediaOut, p.Stop, done)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		p.Stop.Stop()
		<-done
		return ctx.Err()
	}
}

// Cancel signals all stages to stop at their next opportunity without waiting for the
// stream to drain naturally.
func (p *PipelineCoordinator) Cancel() {
	p.Stop.Stop()
}
