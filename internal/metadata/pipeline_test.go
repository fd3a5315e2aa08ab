package metadata

import (
	"context"
	"path/filepath"
	"testing"
)

type fakeClient struct {
	name      Source
	result    *Result
	available bool
	calls     *int
}

func (f *fakeClient) Name() Source                      { return f.name }
func (f *fakeClient) SupportedTypes() []MediaType        { return []MediaType{MediaBook} }
func (f *fakeClient) RequiresAPIKey() bool               { return false }
func (f *fakeClient) Available() bool                    { return f.available }
func (f *fakeClient) Lookup(ctx context.Context, q Query, o Options) (*Result, error) {
	if f.calls != nil {
		*f.calls++
	}
	if f.result == nil {
		return nil, nil
	}
	out := *f.result
	return &out, nil
}

func TestPipelineMergesBookFallbackChain(t *testing.T) {
	// Mirrors spec §8 scenario 5: OpenLibrary (medium, no summary), GoogleBooks (medium,
	// summary+cover), Wikipedia (low). Expect confidence=low (minimum), primary_source =
	// OpenLibrary, summary from GoogleBooks, contributing_sources lists all three.
	openLibrary := &fakeClient{name: SourceOpenLibrary, available: true, result: &Result{
		Title: "1984", Type: MediaBook, Author: "George Orwell", Confidence: ConfidenceMedium,
	}}
	googleBooks := &fakeClient{name: SourceGoogleBooks, available: true, result: &Result{
		Title: "1984", Type: MediaBook, Summary: "A dystopian novel.", CoverURL: "https://covers/1984.jpg",
		Confidence: ConfidenceMedium,
	}}
	wikipedia := &fakeClient{name: SourceWikipedia, available: true, result: &Result{
		Title: "1984", Type: MediaBook, Confidence: ConfidenceLow,
	}}

	cache, err := NewCache(filepath.Join(t.TempDir(), "cache"), 0)
	if err != nil {
		t.Fatalf("NewCache() error: %v", err)
	}
	pipeline := NewPipeline(map[MediaType]Chain{
		MediaBook: {openLibrary, googleBooks, wikipedia},
	}, cache, nil)

	result, err := pipeline.Lookup(context.Background(), Query{MediaType: MediaBook, Title: "1984", Author: "George Orwell"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if result == nil {
		t.Fatal("Lookup() returned nil result")
	}
	if result.Confidence != ConfidenceLow {
		t.Errorf("expected confidence low (minimum over contributors), got %q", result.Confidence)
	}
	if result.PrimarySource != SourceOpenLibrary {
		t.Errorf("expected primary source openlibrary, got %q", result.PrimarySource)
	}
	if result.Summary != "A dystopian novel." {
		t.Errorf("expected summary from GoogleBooks, got %q", result.Summary)
	}
	if result.CoverURL != "https://covers/1984.jpg" {
		t.Errorf("expected cover from GoogleBooks (first non-null), got %q", result.CoverURL)
	}
	if len(result.ContributingSources) != 3 {
		t.Errorf("expected 3 contributing sources, got %v", result.ContributingSources)
	}
}

func TestPipelineStopsEarlyOnHighConfidenceCompleteResult(t *testing.T) {
	calls := 0
	exact := &fakeClient{name: SourceOpenLibrary, available: true, result: &Result{
		Title: "Dune", Type: MediaBook, Year: 1965, Genres: []string{"Science Fiction"},
		Summary: "A desert planet.", CoverURL: "https://covers/dune.jpg", Confidence: ConfidenceHigh,
	}}
	neverCalled := &fakeClient{name: SourceGoogleBooks, available: true, calls: &calls, result: &Result{
		Title: "Dune", Type: MediaBook, Confidence: ConfidenceMedium,
	}}

	cache, _ := NewCache(filepath.Join(t.TempDir(), "cache"), 0)
	pipeline := NewPipeline(map[MediaType]Chain{MediaBook: {exact, neverCalled}}, cache, nil)

	result, err := pipeline.Lookup(context.Background(), Query{MediaType: MediaBook, Title: "Dune"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if result.Confidence != ConfidenceHigh {
		t.Errorf("expected confidence high, got %q", result.Confidence)
	}
	if calls != 0 {
		t.Errorf("expected chain to stop before calling the second provider, got %d calls", calls)
	}
}

func TestPipelineCachesResults(t *testing.T) {
	calls := 0
	client := &fakeClient{name: SourceOpenLibrary, available: true, calls: &calls, result: &Result{
		Title: "Dune", Type: MediaBook, Confidence: ConfidenceLow,
	}}

	cache, _ := NewCache(filepath.Join(t.TempDir(), "cache"), 0)
	pipeline := NewPipeline(map[MediaType]Chain{MediaBook: {client}}, cache, nil)
	query := Query{MediaType: MediaBook, Title: "Dune"}

	if _, err := pipeline.Lookup(context.Background(), query, DefaultOptions()); err != nil {
		t.Fatalf("first Lookup() error: %v", err)
	}
	if _, err := pipeline.Lookup(context.Background(), query, DefaultOptions()); err != nil {
		t.Fatalf("second Lookup() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the provider to be called once (second lookup served from cache), got %d", calls)
	}
}
