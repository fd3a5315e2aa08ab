package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fifosk/ebook-pipeline/internal/metadata"
)

const googleBooksSearchURL = "https://www.googleapis.com/books/v1/volumes"

// GoogleBooks fills in summary and cover for a book query, grounded on
// original_source/modules/services/metadata/clients/google_books.py. Works without an API
// key (rate-limited), using one if provided.
type GoogleBooks struct {
	http   httpClient
	apiKey string
}

func NewGoogleBooks(apiKey string) *GoogleBooks {
	return &GoogleBooks{http: newHTTPClient(10 * time.Second), apiKey: apiKey}
}

func (g *GoogleBooks) Name() metadata.Source               { return metadata.SourceGoogleBooks }
func (g *GoogleBooks) SupportedTypes() []metadata.MediaType { return []metadata.MediaType{metadata.MediaBook} }
func (g *GoogleBooks) RequiresAPIKey() bool                 { return false }
func (g *GoogleBooks) Available() bool                      { return true }

type googleBooksVolumeInfo struct {
	Title               string   `json:"title"`
	Authors             []string `json:"authors"`
	PublishedDate       string   `json:"publishedDate"`
	Description         string   `json:"description"`
	Categories          []string `json:"categories"`
	Language            string   `json:"language"`
	AverageRating       float64  `json:"averageRating"`
	RatingsCount        int      `json:"ratingsCount"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
	ImageLinks struct {
		Thumbnail string `json:"thumbnail"`
	} `json:"imageLinks"`
}

type googleBooksItem struct {
	ID         string                `json:"id"`
	VolumeInfo googleBooksVolumeInfo `json:"volumeInfo"`
}

type googleBooksResponse struct {
	Items []googleBooksItem `json:"items"`
}

func (g *GoogleBooks) Lookup(ctx context.Context, query metadata.Query, options metadata.Options) (*metadata.Result, error) {
	if query.MediaType != metadata.MediaBook || query.Title == "" {
		return nil, nil
	}
	terms := "intitle:" + query.Title
	if query.Author != "" {
		terms += "+inauthor:" + query.Author
	}
	q := url.Values{"q": {terms}, "maxResults": {"5"}}
	if query.ISBN != "" {
		q.Set("q", "isbn:"+query.ISBN)
	}
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}

	var resp googleBooksResponse
	if err := g.http.getJSON(ctx, googleBooksSearchURL, q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	item := resp.Items[0]
	info := item.VolumeInfo

	result := &metadata.Result{
		Title:         info.Title,
		Type:          metadata.MediaBook,
		Summary:       info.Description,
		Genres:        metadata.DeduplicateGenres(info.Categories),
		Language:      info.Language,
		Rating:        info.AverageRating,
		Votes:         info.RatingsCount,
		PrimarySource: metadata.SourceGoogleBooks,
		QueriedAt:     time.Now().UTC(),
	}
	if len(info.Authors) > 0 {
		result.Author = strings.Join(info.Authors, ", ")
	}
	if y, err := strconv.Atoi(info.PublishedDate[:min(4, len(info.PublishedDate))]); err == nil {
		result.Year = y
	}
	if info.ImageLinks.Thumbnail != "" {
		result.CoverURL = strings.Replace(info.ImageLinks.Thumbnail, "http://", "https://", 1)
	}
	result.SourceIDs.GoogleBooksID = item.ID
	for _, id := range info.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_10":
			result.SourceIDs.ISBN = id.Identifier
		case "ISBN_13":
			result.SourceIDs.ISBN13 = id.Identifier
		}
	}

	switch {
	case query.ISBN != "" && (query.ISBN == result.SourceIDs.ISBN || query.ISBN == result.SourceIDs.ISBN13):
		result.Confidence = metadata.ConfidenceHigh
	case result.Summary != "":
		result.Confidence = metadata.ConfidenceMedium
	default:
		result.Confidence = metadata.ConfidenceLow
	}
	return result, nil
}
