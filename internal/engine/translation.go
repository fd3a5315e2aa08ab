package engine

import (
	"context"
	"strings"
	"time"

	"github.com/fifosk/ebook-pipeline/internal/core/tokenizer"
	"github.com/fifosk/ebook-pipeline/internal/llmbatch"
	"github.com/fifosk/ebook-pipeline/internal/progress"
	"github.com/fifosk/ebook-pipeline/internal/prompt"
	"github.com/fifosk/ebook-pipeline/internal/translate"
	"github.com/fifosk/ebook-pipeline/internal/validate"
	"github.com/fifosk/ebook-pipeline/internal/workerpool"
)

// Provider selects the translation backend for a run. Sentence-level fallback across
// providers is not performed inside the engine; failure is surfaced as a failure-annotated
// result (spec §4.9.3).
type Provider string

const (
	ProviderLLM         Provider = "llm"
	ProviderGoogleTranslate Provider = "googletrans"
)

// batchCapableModels lists model tags known to reliably handle JSON-batched translation
// (spec §4.9.3 "a known-model table").
var batchCapableModels = map[string]bool{
	"gpt-4o": true, "gpt-4o-mini": true, "gpt-4.1": true, "gemini-1.5-pro": true,
	"gemini-1.5-flash": true, "gemini-2.0-flash": true, "gemma2:27b": true, "gemma2:9b": true,
}

// ModelSupportsBatching reports whether model is known to reliably return JSON batches.
func ModelSupportsBatching(model string) bool {
	return batchCapableModels[strings.ToLower(model)]
}

// NormalizeBatchSize returns nil (disabling LLM batch mode) when requested < 2, else the
// requested size (spec §4.9.2).
func NormalizeBatchSize(requested int) *int {
	if requested < 2 {
		return nil
	}
	v := requested
	return &v
}

// LanguageBatch is a maximal run of consecutive sentences sharing a target language, of
// size <= batchSize.
type LanguageBatch struct {
	Language  string
	Sentences []TargetAssignment
}

// BuildBatches scans assignments and emits a maximal run of consecutive sentences that
// share a target language and whose size <= batchSize; a language boundary forces a flush
// (spec §4.9.2).
func BuildBatches(assignments []TargetAssignment, batchSize *int) []LanguageBatch {
	if len(assignments) == 0 {
		return nil
	}
	limit := 1
	if batchSize != nil && *batchSize > 0 {
		limit = *batchSize
	}
	var out []LanguageBatch
	cur := LanguageBatch{Language: assignments[0].Language}
	for _, a := range assignments {
		if a.Language != cur.Language || len(cur.Sentences) >= limit {
			if len(cur.Sentences) > 0 {
				out = append(out, cur)
			}
			cur = LanguageBatch{Language: a.Language}
		}
		cur.Sentences = append(cur.Sentences, a)
	}
	if len(cur.Sentences) > 0 {
		out = append(out, cur)
	}
	return out
}

// TranslationEngine is the stage-1 scheduler (C11): consumes sentences, produces
// TranslationResult records, implementing per-language batching, retries, and provider
// selection.
type TranslationEngine struct {
	Provider               Provider
	Model                  string
	LLM                    *llmbatch.BatchClient
	Google                 *translate.GoogleProvider
	Transliterator         *translate.Transliterator
	Tracker                *progress.Tracker
	Memory                 *translate.Memory
	Pool                   workerpool.Pool
	BatchSize              *int
	IncludeTransliteration bool
	RequestTimeout         time.Duration
	MaxResponseRetries     int // default 5, per-sentence; 4 additional for batch calls
	// Glossary pins recurring proper nouns to a fixed rendering across the whole run; see
	// BuildGlossary. Consulted both when building prompts and by the post-translation
	// quality gate.
	Glossary map[string]string
	// TokenEstimator, when set with MaxBatchTokens > 0, further splits a LanguageBatch so
	// no single batched LLM request is estimated to exceed the model's context budget.
	TokenEstimator *tokenizer.Estimator
	MaxBatchTokens int
}

// New constructs a TranslationEngine with spec-default retry counts and timeout.
func New(provider Provider, model string) *TranslationEngine {
	return &TranslationEngine{
		Provider:           provider,
		Model:              model,
		RequestTimeout:     60 * time.Second,
		MaxResponseRetries: 5,
	}
}

// TranslateBatch is the synchronous batch form (spec §4.9.1): translates all sentences
// before returning. PipelineCoordinator does not call it; "sequential" mode runs through
// the staged Run path with worker_count=1, queue_size=1.
func (e *TranslationEngine) TranslateBatch(ctx context.Context, sentences []Sentence, sourceLang string, targets []string, includeTransliteration bool) []TranslationResult {
	if e.Glossary == nil {
		e.Glossary = BuildGlossary(sentences, nil)
	}
	assignments := AssignTargets(sentences, targets, 0)
	return e.translateAssignments(ctx, assignments, sourceLang, includeTransliteration)
}

// Start is the streaming form (spec §4.9.1): runs on the calling goroutine (the caller is
// expected to invoke it from its own dedicated goroutine), emitting TranslationResults to
// output in arbitrary completion order, then enqueueing one sentinel per downstream
// consumer.
func (e *TranslationEngine) Start(ctx context.Context, sentences []Sentence, sourceLang string, targets []string,
	output chan<- *TranslationResult, stop *StopSignal, consumers int) {
	defer func() {
		for i := 0; i < consumers; i++ {
			select {
			case output <- nil:
			case <-ctx.Done():
				return
			}
		}
	}()

	if e.Glossary == nil {
		e.Glossary = BuildGlossary(sentences, nil)
	}
	assignments := AssignTargets(sentences, targets, 0)
	if e.Tracker != nil {
		e.Tracker.SetTotal(len(assignments))
	}
	batches := BuildBatches(assignments, e.BatchSize)

	for _, batch := range batches {
		if stop.Stopped() {
			return
		}
		results := e.translateOneBatch(ctx, batch, sourceLang)
		if e.IncludeTransliteration && e.Transliterator != nil {
			e.attachTransliterations(ctx, results)
		}
		e.applyQualityGate(sourceLang, results)
		for i := range results {
			r := results[i]
			if stop.Stopped() {
				return
			}
			select {
			case output <- &r:
			case <-ctx.Done():
				return
			}
			if e.Tracker != nil {
				e.Tracker.CompleteTranslation()
			}
		}
	}
}

// StopSignal is the single monotonic boolean used for cooperative cancellation across all
// stages (spec §5 "Cancellation semantics").
type StopSignal struct {
	ch chan struct{}
}

// NewStopSignal constructs an unset StopSignal.
func NewStopSignal() *StopSignal { return &StopSignal{ch: make(chan struct{})} }

// Stop sets the signal. Idempotent.
func (s *StopSignal) Stop() {
	select {
	case <-s.ch:
	default:
		close(s.ch)
	}
}

// Stopped reports whether Stop has been called.
func (s *StopSignal) Stopped() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when Stop is called, for use in select statements.
func (s *StopSignal) Done() <-chan struct{} { return s.ch }

func (e *TranslationEngine) translateAssignments(ctx context.Context, assignments []TargetAssignment, sourceLang string, includeTransliteration bool) []TranslationResult {
	batches := BuildBatches(assignments, e.BatchSize)
	out := make([]TranslationResult, 0, len(assignments))
	for _, batch := range batches {
		out = append(out, e.translateOneBatch(ctx, batch, sourceLang)...)
	}
	if includeTransliteration && e.Transliterator != nil {
		e.attachTransliterations(ctx, out)
	}
	e.applyQualityGate(sourceLang, out)
	return out
}

// translateOneBatch executes one LanguageBatch according to §4.9.3's strategy table.
func (e *TranslationEngine) translateOneBatch(ctx context.Context, batch LanguageBatch, sourceLang string) []TranslationResult {
	if e.TokenEstimator != nil && e.MaxBatchTokens > 0 {
		if sub := splitByTokenBudget(batch.Sentences, e.TokenEstimator, e.MaxBatchTokens); len(sub) > 1 {
			out := make([]TranslationResult, 0, len(batch.Sentences))
			for _, part := range sub {
				out = append(out, e.translateOneBatch(ctx, LanguageBatch{Language: batch.Language, Sentences: part}, sourceLang)...)
			}
			return out
		}
	}

	results := make([]TranslationResult, len(batch.Sentences))
	for i, a := range batch.Sentences {
		results[i] = TranslationResult{
			Index: a.Sentence.Index, Number: a.Sentence.Number,
			SourceText: a.Sentence.Text, TargetLanguage: a.Language,
		}
	}

	switch e.Provider {
	case ProviderGoogleTranslate:
		e.dispatchSentences(ctx, batch.Sentences, results, func(a TargetAssignment, out *TranslationResult) {
			e.translateSentenceGoogle(ctx, sourceLang, a, out)
		})
		return results
	default: // ProviderLLM
	}

	if e.BatchSize != nil && len(batch.Sentences) > 1 && ModelSupportsBatching(e.Model) && e.LLM != nil {
		if e.translateBatchLLM(ctx, sourceLang, batch, results) {
			return results
		}
	}

	e.dispatchSentences(ctx, batch.Sentences, results, func(a TargetAssignment, out *TranslationResult) {
		if out.Err != nil || out.Translation != "" {
			return
		}
		e.translateSentenceLLM(ctx, sourceLang, a, out)
	})
	return results
}

// dispatchSentences runs work for each sentence in batch.Sentences against its matching
// results slot, fanning out across e.Pool when configured so that independent per-sentence
// LLM/HTTP calls within one language batch overlap in flight (spec §5 "intra-stage
// concurrency"), or sequentially when no pool is set.
func (e *TranslationEngine) dispatchSentences(ctx context.Context, sentences []TargetAssignment, results []TranslationResult, work func(TargetAssignment, *TranslationResult)) {
	if e.Pool == nil {
		for i, a := range sentences {
			work(a, &results[i])
		}
		return
	}
	futures := make([]workerpool.Future, len(sentences))
	for i, a := range sentences {
		i, a := i, a
		futures[i] = e.Pool.Submit(func(ctx context.Context) (any, error) {
			work(a, &results[i])
			return nil, nil
		})
	}
	for _, f := range futures {
		_, _ = f.Value()
	}
}

// translateBatchLLM attempts the batched path; returns true if every sentence in the
// batch resolved (whether accepted or exhausted-to-failure-annotation), false if the
// batch call itself failed validation after exhaustion and the caller should fall back to
// per-sentence calls for the whole batch.
func (e *TranslationEngine) translateBatchLLM(ctx context.Context, sourceLang string, batch LanguageBatch, results []TranslationResult) bool {
	items := make([]llmbatch.Item, len(batch.Sentences))
	for i, a := range batch.Sentences {
		items[i] = llmbatch.Item{ID: a.Sentence.Index, Text: a.Sentence.Text}
	}
	systemPrompt := prompt.BuildBatch(prompt.BatchOptions{SourceLanguage: sourceLang, TargetLanguage: batch.Language, Glossary: e.Glossary})

	const maxResponseAttempts = 5 // 1 initial + 4 retries, per spec §4.9.4
	byIndex := map[int]TargetAssignment{}
	for _, a := range batch.Sentences {
		byIndex[a.Sentence.Index] = a
	}

	for attempt := 1; attempt <= maxResponseAttempts; attempt++ {
		resp := e.LLM.RequestBatch(ctx, systemPrompt, items, e.RequestTimeout, 4, llmbatch.RequiresNonEmptyItems, batch.Language)
		if resp.Err != nil || resp.Payload == nil {
			if e.Tracker != nil {
				e.Tracker.RecordRetry("translation_batch", "transport")
			}
			if attempt < maxResponseAttempts {
				e.wait(ctx, time.Second)
				continue
			}
			if e.Tracker != nil {
				e.Tracker.RecordBatch(string(e.Provider), false, false)
			}
			return false
		}

		resultByID := map[int]llmbatch.ResponseItem{}
		for _, ri := range resp.Payload.Items {
			resultByID[ri.ID] = ri
		}

		allAccepted := true
		fellBack := false
		for idx, a := range byIndex {
			pos := indexInResults(results, idx)
			if pos < 0 || results[pos].Translation != "" {
				continue
			}
			ri, ok := resultByID[idx]
			if !ok {
				fellBack = true
				e.translateSentenceLLM(ctx, sourceLang, a, &results[pos])
				continue
			}
			outcome := validate.ValidateTranslation(a.Sentence.Text, ri.Translation, a.Language)
			if !outcome.Accepted {
				allAccepted = false
				if e.Tracker != nil {
					e.Tracker.RecordRetry("translation", string(outcome.Reason))
				}
				continue
			}
			results[pos].Translation = ri.Translation
			results[pos].RetryCount = attempt - 1
			if ri.HasTransliteration {
				results[pos].Transliteration = ri.Transliteration
				results[pos].HasTransliteration = true
			}
			if e.Memory != nil {
				e.Memory.Remember(sourceLang, a.Language, a.Sentence.Text, ri.Translation)
			}
		}

		if allAccepted {
			if e.Tracker != nil {
				e.Tracker.RecordBatch(string(e.Provider), true, fellBack)
			}
			return true
		}
		if attempt < maxResponseAttempts {
			e.wait(ctx, time.Second)
		}
	}

	for idx, a := range byIndex {
		pos := indexInResults(results, idx)
		if pos >= 0 && results[pos].Translation == "" {
			e.fail(&results[pos], "translation", maxResponseAttempts, "validation exhausted")
			_ = a
		}
	}
	if e.Tracker != nil {
		e.Tracker.RecordBatch(string(e.Provider), false, true)
	}
	return true
}

// splitByTokenBudget partitions sentences into consecutive runs whose estimated token
// count stays within maxTokens, never splitting a single sentence across two runs even if
// that sentence alone exceeds the budget.
func splitByTokenBudget(sentences []TargetAssignment, estimator *tokenizer.Estimator, maxTokens int) [][]TargetAssignment {
	var out [][]TargetAssignment
	var cur []TargetAssignment
	curTokens := 0
	for _, a := range sentences {
		t := estimator.EstimateTokens(a.Sentence.Text)
		if len(cur) > 0 && curTokens+t > maxTokens {
			out = append(out, cur)
			cur = nil
			curTokens = 0
		}
		cur = append(cur, a)
		curTokens += t
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func indexInResults(results []TranslationResult, index int) int {
	for i, r := range results {
		if r.Index == index {
			return i
		}
	}
	return -1
}

// translateSentenceLLM issues a single-prompt request, applying the same response-level
// retry budget as the batched path (5 attempts total, 1s delay).
func (e *TranslationEngine) translateSentenceLLM(ctx context.Context, sourceLang string, a TargetAssignment, out *TranslationResult) {
	if e.Memory != nil {
		if cached, ok := e.Memory.Lookup(sourceLang, a.Language, a.Sentence.Text, 0.95); ok {
			out.Translation = cached
			return
		}
	}
	systemPrompt := prompt.BuildSingle(prompt.SingleOptions{SourceLanguage: sourceLang, TargetLanguage: a.Language, Glossary: e.Glossary})
	items := []llmbatch.Item{{ID: a.Sentence.Index, Text: a.Sentence.Text}}

	const maxResponseAttempts = 5
	var lastReason string
	for attempt := 1; attempt <= maxResponseAttempts; attempt++ {
		resp := e.LLM.RequestBatch(ctx, systemPrompt, items, e.RequestTimeout, 4, nil, a.Language)
		if resp.Err != nil {
			lastReason = resp.Err.Error()
			if e.Tracker != nil {
				e.Tracker.RecordRetry("translation", "transport")
			}
			if attempt < maxResponseAttempts {
				e.wait(ctx, time.Second)
			}
			continue
		}
		candidate := strings.TrimSpace(resp.RawText)
		outcome := validate.ValidateTranslation(a.Sentence.Text, candidate, a.Language)
		if outcome.Accepted {
			out.Translation = candidate
			out.RetryCount = attempt - 1
			if e.Memory != nil {
				e.Memory.Remember(sourceLang, a.Language, a.Sentence.Text, candidate)
			}
			return
		}
		lastReason = string(outcome.Reason)
		if e.Tracker != nil {
			e.Tracker.RecordRetry("translation", lastReason)
		}
		if attempt < maxResponseAttempts {
			e.wait(ctx, time.Second)
		}
	}
	e.fail(out, "translation", maxResponseAttempts, lastReason)
}

func (e *TranslationEngine) translateSentenceGoogle(ctx context.Context, sourceLang string, a TargetAssignment, out *TranslationResult) {
	if e.Google == nil {
		e.fail(out, "translation", 0, "no google provider configured")
		return
	}
	result, err := e.Google.TranslateTracked(ctx, a.Sentence.Text, sourceLang, a.Language, e.Tracker)
	if err != nil {
		out.Translation = result
		out.Err = err
		return
	}
	out.Translation = result
	if e.Memory != nil {
		e.Memory.Remember(sourceLang, a.Language, a.Sentence.Text, result)
	}
}

func (e *TranslationEngine) attachTransliterations(ctx context.Context, results []TranslationResult) {
	for i := range results {
		if results[i].Err != nil || results[i].HasTransliteration {
			continue
		}
		tr, err := e.Transliterator.Transliterate(ctx, results[i].TargetLanguage, results[i].Translation)
		if err == nil && tr != "" {
			results[i].Transliteration = tr
			results[i].HasTransliteration = true
		}
	}
}

func (e *TranslationEngine) fail(out *TranslationResult, stage string, attempts int, reason string) {
	out.Translation = FailureAnnotation(stage, attempts, reason)
	out.Err = failureError(reason)
	out.RetryCount = attempts
}

func (e *TranslationEngine) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

type failureError string

func (f failureError) Error() string { return string(f) }
