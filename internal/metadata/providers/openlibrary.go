package providers

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/fifosk/ebook-pipeline/internal/metadata"
)

const openLibrarySearchURL = "https://openlibrary.org/search.json"

// OpenLibrary looks up book metadata by title/author/ISBN, grounded on
// original_source/modules/services/metadata/clients/openlibrary.py.
type OpenLibrary struct {
	http httpClient
}

func NewOpenLibrary() *OpenLibrary {
	return &OpenLibrary{http: newHTTPClient(10 * time.Second)}
}

func (o *OpenLibrary) Name() metadata.Source               { return metadata.SourceOpenLibrary }
func (o *OpenLibrary) SupportedTypes() []metadata.MediaType { return []metadata.MediaType{metadata.MediaBook} }
func (o *OpenLibrary) RequiresAPIKey() bool                 { return false }
func (o *OpenLibrary) Available() bool                      { return true }

type openLibraryDoc struct {
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	ISBN             []string `json:"isbn"`
	Subject          []string `json:"subject"`
	CoverI           int      `json:"cover_i"`
	Key              string   `json:"key"`
	Language         []string `json:"language"`
}

type openLibraryResponse struct {
	Docs []openLibraryDoc `json:"docs"`
}

func (o *OpenLibrary) Lookup(ctx context.Context, query metadata.Query, options metadata.Options) (*metadata.Result, error) {
	if query.MediaType != metadata.MediaBook || query.Title == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("title", query.Title)
	if query.Author != "" {
		q.Set("author", query.Author)
	}
	q.Set("limit", "5")
	if query.ISBN != "" {
		q.Set("isbn", query.ISBN)
	}

	var resp openLibraryResponse
	if err := o.http.getJSON(ctx, openLibrarySearchURL, q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Docs) == 0 {
		return nil, nil
	}
	doc := resp.Docs[0]

	result := &metadata.Result{
		Title:         doc.Title,
		Type:          metadata.MediaBook,
		Year:          doc.FirstPublishYear,
		Genres:        metadata.DeduplicateGenres(doc.Subject),
		PrimarySource: metadata.SourceOpenLibrary,
		QueriedAt:     time.Now().UTC(),
	}
	if len(doc.AuthorName) > 0 {
		result.Author = doc.AuthorName[0]
	}
	if len(doc.Language) > 0 {
		result.Language = doc.Language[0]
	}
	if doc.CoverI != 0 {
		result.CoverURL = "https://covers.openlibrary.org/b/id/" + strconv.Itoa(doc.CoverI) + "-L.jpg"
	}
	if len(doc.ISBN) > 0 {
		result.SourceIDs.ISBN = doc.ISBN[0]
		for _, isbn := range doc.ISBN {
			if len(isbn) == 13 {
				result.SourceIDs.ISBN13 = isbn
				break
			}
		}
	}
	result.SourceIDs.OpenLibraryWorkKey = doc.Key

	switch {
	case (query.ISBN != "" && query.ISBN == result.SourceIDs.ISBN) || (query.ISBN != "" && query.ISBN == result.SourceIDs.ISBN13):
		result.Confidence = metadata.ConfidenceHigh
	case query.Author != "" && len(doc.AuthorName) > 0:
		result.Confidence = metadata.ConfidenceMedium
	default:
		result.Confidence = metadata.ConfidenceLow
	}
	return result, nil
}
