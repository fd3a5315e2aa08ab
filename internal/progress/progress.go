// Package progress implements the thread-safe ProgressTracker (C10): sentence/media
// counters, a nested retries[stage][reason] map, per-stage batch statistics, a
// per-second moving-average ETA, and snapshot publication to subscribers.
package progress

import (
	"sync"
	"time"
)

// BatchStats accumulates per-stage batch call statistics (spec §4.9.3's batched LLM path).
type BatchStats struct {
	Calls      int
	Successes  int
	Failures   int
	Fallbacks  int // batch call succeeded but some ids fell back to per-sentence calls
}

// Snapshot is an immutable view suitable for serialization to an observer (e.g. a status
// endpoint). It is a value type: copying it is always safe.
type Snapshot struct {
	Total              int
	CompletedTranslation int
	CompletedMedia     int
	Retries            map[string]map[string]int
	BatchStats         map[string]BatchStats
	SentencesPerSecond float64
	TakenAt            time.Time
}

// Tracker is the concurrency-safe counter bundle. Zero value is not usable; use New.
type Tracker struct {
	mu sync.Mutex

	total               int
	completedTranslation int
	completedMedia      int
	retries             map[string]map[string]int
	batchStats          map[string]BatchStats

	// moving average bookkeeping for ETA
	windowStart time.Time
	windowCount int
	rate        float64

	subscribers []func(Snapshot)
}

// New constructs a Tracker with the given initial total (sentences known at stage entry;
// C11 may raise it later if more sentences are discovered).
func New(total int) *Tracker {
	return &Tracker{
		total:       total,
		retries:     map[string]map[string]int{},
		batchStats:  map[string]BatchStats{},
		windowStart: time.Now(),
	}
}

// Subscribe registers a callback invoked synchronously on every snapshot publication
// (every SetTotal, Complete* and Record* call). It takes the tracker's lock, so it may be called while updates run.
func (t *Tracker) Subscribe(fn func(Snapshot)) {
	t.mu.Lock()
	t.subscribers = append(t.subscribers, fn)
	t.mu.Unlock()
}

// SetTotal adjusts the total upward if C11 discovers more sentences than initially known.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	if total > t.total {
		t.total = total
	}
	t.mu.Unlock()
	t.publish()
}

// CompleteTranslation increments the translation-stage completion counter.
func (t *Tracker) CompleteTranslation() {
	t.mu.Lock()
	t.completedTranslation++
	t.tickRateLocked()
	t.mu.Unlock()
	t.publish()
}

// CompleteMedia increments the media-stage completion counter.
func (t *Tracker) CompleteMedia() {
	t.mu.Lock()
	t.completedMedia++
	t.mu.Unlock()
	t.publish()
}

// RecordRetry increments retries[stage][reason].
func (t *Tracker) RecordRetry(stage, reason string) {
	t.mu.Lock()
	if t.retries[stage] == nil {
		t.retries[stage] = map[string]int{}
	}
	t.retries[stage][reason]++
	t.mu.Unlock()
	t.publish()
}

// RecordBatch updates batch-call statistics for stage (attempted, succeeded, and whether
// any ids fell back to the per-sentence path).
func (t *Tracker) RecordBatch(stage string, succeeded bool, fellBack bool) {
	t.mu.Lock()
	s := t.batchStats[stage]
	s.Calls++
	if succeeded {
		s.Successes++
	} else {
		s.Failures++
	}
	if fellBack {
		s.Fallbacks++
	}
	t.batchStats[stage] = s
	t.mu.Unlock()
	t.publish()
}

// tickRateLocked recomputes the per-second moving average of sentence completion over a
// one-second rolling window. Caller must hold t.mu.
func (t *Tracker) tickRateLocked() {
	t.windowCount++
	elapsed := time.Since(t.windowStart)
	if elapsed >= time.Second {
		t.rate = float64(t.windowCount) / elapsed.Seconds()
		t.windowStart = time.Now()
		t.windowCount = 0
	}
}

// Snapshot returns an immutable view of the tracker's current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	retries := make(map[string]map[string]int, len(t.retries))
	for stage, m := range t.retries {
		inner := make(map[string]int, len(m))
		for reason, n := range m {
			inner[reason] = n
		}
		retries[stage] = inner
	}
	batches := make(map[string]BatchStats, len(t.batchStats))
	for stage, s := range t.batchStats {
		batches[stage] = s
	}
	return Snapshot{
		Total:                 t.total,
		CompletedTranslation:  t.completedTranslation,
		CompletedMedia:        t.completedMedia,
		Retries:               retries,
		BatchStats:            batches,
		SentencesPerSecond:    t.rate,
		TakenAt:               time.Now(),
	}
}

// publish invokes all subscribers with the current snapshot. Subscribers run synchronously
// on the calling goroutine; they must not block for long.
func (t *Tracker) publish() {
	t.mu.Lock()
	snap := t.snapshotLocked()
	subs := make([]func(Snapshot), len(t.subscribers))
	copy(subs, t.subscribers)
	t.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}
