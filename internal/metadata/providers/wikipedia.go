package providers

import (
	"context"
	"net/url"
	"time"

	"github.com/fifosk/ebook-pipeline/internal/metadata"
)

const wikipediaSummaryURL = "https://en.wikipedia.org/api/rest_v1/page/summary/"

// Wikipedia is the last-resort fallback in the book, movie and tv_series chains (spec
// §4.13; the tv_episode and youtube_video chains do not include it), grounded on
// original_source/modules/services/metadata/clients/wikipedia.py. It never returns a
// high-confidence result since it can't confirm an exact-ID match.
type Wikipedia struct {
	http httpClient
}

func NewWikipedia() *Wikipedia {
	return &Wikipedia{http: newHTTPClient(10 * time.Second)}
}

func (w *Wikipedia) Name() metadata.Source { return metadata.SourceWikipedia }
func (w *Wikipedia) SupportedTypes() []metadata.MediaType {
	return []metadata.MediaType{metadata.MediaBook, metadata.MediaMovie, metadata.MediaTVSeries}
}
func (w *Wikipedia) RequiresAPIKey() bool { return false }
func (w *Wikipedia) Available() bool      { return true }

type wikipediaSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	Description string `json:"description"`
	Thumbnail   struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
}

func (w *Wikipedia) Lookup(ctx context.Context, query metadata.Query, options metadata.Options) (*metadata.Result, error) {
	title := query.Title
	if query.MovieTitle != "" {
		title = query.MovieTitle
	}
	if query.SeriesName != "" {
		title = query.SeriesName
	}
	if title == "" {
		return nil, nil
	}

	var summary wikipediaSummary
	if err := w.http.getJSON(ctx, wikipediaSummaryURL+url.PathEscape(title), nil, &summary); err != nil {
		return nil, err
	}
	if summary.Extract == "" {
		return nil, nil
	}

	result := &metadata.Result{
		Title:         summary.Title,
		Type:          query.MediaType,
		Summary:       summary.Extract,
		PrimarySource: metadata.SourceWikipedia,
		Confidence:    metadata.ConfidenceLow,
		QueriedAt:     time.Now().UTC(),
	}
	if summary.Thumbnail.Source != "" {
		result.CoverURL = summary.Thumbnail.Source
	}
	return result, nil
}
