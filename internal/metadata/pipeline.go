package metadata

import (
	"context"
	"log/slog"
	"time"
)

// Pipeline is the stateless C15 orchestrator: per-media-type fallback chain, cache-then-chain
// lookup, confidence-graded merge. Grounded directly on
// original_source/modules/services/metadata/pipeline.py's MetadataPipeline.lookup.
type Pipeline struct {
	chains map[MediaType]Chain
	cache  *Cache
	logger *slog.Logger
}

func NewPipeline(chains map[MediaType]Chain, cache *Cache, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{chains: chains, cache: cache, logger: logger}
}

// Lookup runs the fallback chain for query.MediaType, merging every non-null result that
// comes back, and stops early only once a high-confidence, fully-populated result arrives.
func (p *Pipeline) Lookup(ctx context.Context, query Query, options Options) (*Result, error) {
	if options.MaxSources <= 0 {
		options = DefaultOptions()
	}
	if !options.ForceRefresh && !options.SkipCache && p.cache != nil {
		if cached, ok := p.cache.Get(query); ok {
			return &cached, nil
		}
	}

	chain := p.chains[query.MediaType]
	collected := make([]Result, 0, len(chain))

	for i, client := range chain {
		if i >= options.MaxSources {
			break
		}
		if !client.Available() {
			continue
		}
		lookupCtx := ctx
		cancel := func() {}
		if options.Timeout > 0 {
			lookupCtx, cancel = context.WithTimeout(ctx, options.Timeout)
		}
		result, err := client.Lookup(lookupCtx, query, options)
		cancel()
		if err != nil {
			p.logger.Warn("metadata provider lookup failed", "source", client.Name(), "error", err)
			continue
		}
		if result == nil || (result.Error != "" && result.Title == "") {
			continue
		}
		result.PrimarySource = client.Name()
		collected = append(collected, *result)

		if result.Confidence == ConfidenceHigh && result.HasRequiredFields() {
			break
		}
	}

	if len(collected) == 0 {
		return nil, nil
	}

	merged := MergeResults(collected)
	merged.PrimarySource = collected[0].PrimarySource
	contributing := make([]Source, 0, len(collected))
	for _, r := range collected {
		contributing = append(contributing, r.PrimarySource)
	}
	merged.ContributingSources = contributing
	merged.Genres = capGenres(DeduplicateGenres(merged.Genres), 10)
	merged.QueriedAt = time.Now().UTC()

	if !options.IncludeRawResponses {
		merged.Error = ""
	}

	if p.cache != nil {
		if err := p.cache.Set(query, merged); err != nil {
			p.logger.Warn("metadata cache write failed", "error", err)
		}
	}
	return &merged, nil
}

// LookupWithFallback is Lookup, but returns a non-nil Result with Error set instead of a
// nil Result when every provider in the chain misses.
func (p *Pipeline) LookupWithFallback(ctx context.Context, query Query, options Options) (*Result, error) {
	result, err := p.Lookup(ctx, query, options)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}
	return &Result{
		Title:     query.Title,
		Type:      query.MediaType,
		Error:     "no metadata source returned a result",
		QueriedAt: time.Now().UTC(),
	}, nil
}

func capGenres(genres []string, max int) []string {
	if len(genres) <= max {
		return genres
	}
	return genres[:max]
}
