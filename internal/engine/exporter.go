package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExportFunc writes one completed BatchWindow to its durable destination (file, archive
// member, etc.); kept as an injected function rather than an interface since the teacher's
// own pipeline.go writes files directly without an abstraction layer.
type ExportFunc func(window BatchWindow) error

// BatchExporter is the stage-3 scheduler (C13): reassembles MediaItems into strictly
// ordered, contiguous windows of SentencesPerOutputFile size, and flushes each completed
// window through Export. Out-of-order arrival (a later index finishing before an earlier
// one) is buffered until the gap closes (spec §4.11 "buffer[next_index]").
type BatchExporter struct {
	WindowSize int
	OutputDir  string
	Export     ExportFunc

	buffer    map[int]MediaItem
	nextIndex int
	window    BatchWindow
}

// NewBatchExporter constructs a BatchExporter. startIndex is the index of the first
// sentence this run produces (non-zero on a resumed job).
func NewBatchExporter(windowSize int, outputDir string, startIndex int, export ExportFunc) *BatchExporter {
	return &BatchExporter{
		WindowSize: windowSize,
		OutputDir:  outputDir,
		Export:     export,
		buffer:     make(map[int]MediaItem),
		nextIndex:  startIndex,
	}
}

// DefaultExportFunc writes window to a plain text file in dir (one "number<TAB>translation"
// line per sentence), named by the RangeFragment convention (spec §4.11 "FFFF-LLLL filenames").
func DefaultExportFunc(dir, targetLanguage string) ExportFunc {
	return func(window BatchWindow) error {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.txt", targetLanguage, window.RangeFragment()))
		var b strings.Builder
		for _, item := range window.Items {
			fmt.Fprintf(&b, "%d\t%s\n", item.Number, item.Translation)
		}
		return os.WriteFile(path, []byte(b.String()), 0o644)
	}
}

// Start drains input until a nil sentinel is received (or ctx is cancelled), reassembling
// items into ordered windows and flushing completed ones through Export. Any items still
// buffered when the stream ends are flushed as a final, possibly undersized window (spec
// §4.11 "final partial window on stream end").
func (e *BatchExporter) Start(ctx context.Context, input <-chan *MediaItem, stop *StopSignal, done chan<- error) {
	var finalErr error
	defer func() {
		if len(e.window.Items) > 0 {
			if err := e.Export(e.window); err != nil && finalErr == nil {
				finalErr = err
			}
		}
		if done != nil {
			done <- finalErr
		}
	}()

	for {
		select {
		case <-ctx.Done():
			finalErr = ctx.Err()
			return
		case <-stop.Done():
			return
		case item, ok := <-input:
			if !ok || item == nil {
				return
			}
			if err := e.ingest(*item); err != nil && finalErr == nil {
				finalErr = err
			}
		}
	}
}

// ingest buffers item and flushes a window every time WindowSize consecutive items
// starting at nextIndex have arrived.
func (e *BatchExporter) ingest(item MediaItem) error {
	e.buffer[item.Index] = item
	for {
		next, ok := e.buffer[e.nextIndex]
		if !ok {
			return nil
		}
		delete(e.buffer, e.nextIndex)
		if len(e.window.Items) == 0 {
			e.window.FirstNumber = next.Number
		}
		e.window.Items = append(e.window.Items, next)
		e.window.LastNumber = next.Number
		e.nextIndex++

		if e.WindowSize > 0 && len(e.window.Items) >= e.WindowSize {
			w := e.window
			e.window = BatchWindow{}
			if err := e.Export(w); err != nil {
				return err
			}
		}
	}
}
