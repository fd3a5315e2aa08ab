package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/fifosk/ebook-pipeline/internal/progress"
	"github.com/fifosk/ebook-pipeline/internal/workerpool"
)

// MediaOptions controls which side-channel outputs the MediaEngine produces for each
// translation result (spec §4.10 "Media toggles").
type MediaOptions struct {
	AudioEnabled    bool
	VideoEnabled    bool
	VoiceID         string
	Tempo           float64
	ReadingSpeed    float64
	TotalSentences  int
}

// MediaEngine is the stage-2 scheduler (C12): consumes TranslationResult records from the
// translation stage and produces MediaItem records, synthesizing audio/video via an
// injected MediaSynthesizer (kept out-of-core per spec §6, since audio/video codecs are
// external collaborators, not part of the pipeline's own concurrency model).
type MediaEngine struct {
	Synthesizer MediaSynthesizer
	Options     MediaOptions
	Tracker     *progress.Tracker
	// Pool, when set, runs audio synthesis for distinct results concurrently rather than
	// one at a time; synthesis is typically the slowest stage (codec/TTS calls), so it
	// benefits most from the bounded fan-out the other stages also use.
	Pool workerpool.Pool
}

// NewMediaEngine constructs a MediaEngine. synthesizer may be nil, in which case media synthesis is
// a no-op passthrough (translation-only runs, spec §4.10 "media disabled").
func NewMediaEngine(synthesizer MediaSynthesizer, opts MediaOptions) *MediaEngine {
	return &MediaEngine{Synthesizer: synthesizer, Options: opts}
}

// Start drains input until a nil sentinel is received (or ctx is cancelled), emitting one
// MediaItem per TranslationResult to output, then forwarding a sentinel per consumer
// downstream (spec §5 "Sentinel draining").
func (m *MediaEngine) Start(ctx context.Context, sourceLang string, input <-chan *TranslationResult,
	output chan<- *MediaItem, stop *StopSignal, consumers int) {
	defer func() {
		for i := 0; i < consumers; i++ {
			select {
			case output <- nil:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	emit := func(item *MediaItem) {
		select {
		case output <- item:
		case <-ctx.Done():
		}
		if m.Tracker != nil {
			m.Tracker.CompleteMedia()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop.Done():
			return
		case r, ok := <-input:
			if !ok || r == nil {
				return
			}
			if m.Pool == nil {
				emit(m.process(r))
				continue
			}
			wg.Add(1)
			future := m.Pool.Submit(func(ctx context.Context) (any, error) {
				return m.process(r), nil
			})
			go func() {
				defer wg.Done()
				v, _ := future.Value()
				if item, ok := v.(*MediaItem); ok {
					emit(item)
				}
			}()
		}
	}
}

func (m *MediaEngine) process(r *TranslationResult) *MediaItem {
	item := &MediaItem{
		Index: r.Index, Number: r.Number, TargetLanguage: r.TargetLanguage,
		Sentence: r.SourceText, Translation: r.Translation,
		Transliteration: r.Transliteration, HasTransliteration: r.HasTransliteration,
		Err: r.Err,
	}
	if r.Err != nil {
		return item
	}
	if m.Options.AudioEnabled && m.Synthesizer != nil {
		audio, err := m.Synthesizer.Synthesize(r.Index, r.Number, r.SourceText, r.Translation,
			"", r.TargetLanguage, true, m.Options.TotalSentences, m.Options.VoiceID,
			m.Options.Tempo, m.Options.ReadingSpeed)
		if err != nil {
			item.Err = err
			return item
		}
		item.Audio = audio
	}
	if m.Options.VideoEnabled {
		item.VideoBlock = renderVideoBlock(item)
	}
	return item
}

// renderVideoBlock renders one subtitle-style block: a header line with the 1-based sentence
// number and target language, the source sentence, the translation, and the transliteration
// line when present.
func renderVideoBlock(item *MediaItem) string {
	block := fmt.Sprintf("[%d] (%s)\n%s\n%s", item.Number, item.TargetLanguage, item.Sentence, item.Translation)
	if item.HasTransliteration && item.Transliteration != "" {
		block = block + "\n" + item.Transliteration
	}
	return block
}
