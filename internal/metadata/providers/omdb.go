package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fifosk/ebook-pipeline/internal/metadata"
)

const omdbBaseURL = "https://www.omdbapi.com/"

// OMDb resolves movie/TV metadata by title or IMDb id, grounded on
// original_source/modules/services/metadata/clients/omdb.py.
type OMDb struct {
	http   httpClient
	apiKey string
}

func NewOMDb(apiKey string) *OMDb {
	return &OMDb{http: newHTTPClient(10 * time.Second), apiKey: apiKey}
}

func (o *OMDb) Name() metadata.Source { return metadata.SourceOMDb }
func (o *OMDb) SupportedTypes() []metadata.MediaType {
	return []metadata.MediaType{metadata.MediaMovie, metadata.MediaTVSeries, metadata.MediaTVEpisode}
}
func (o *OMDb) RequiresAPIKey() bool { return true }
func (o *OMDb) Available() bool      { return o.apiKey != "" }

type omdbResponse struct {
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	Genre    string `json:"Genre"`
	Plot     string `json:"Plot"`
	Poster   string `json:"Poster"`
	ImdbID   string `json:"imdbID"`
	ImdbVote string `json:"imdbRating"`
	Votes    string `json:"imdbVotes"`
	Runtime  string `json:"Runtime"`
	Type     string `json:"Type"`
	Response string `json:"Response"`
}

func (o *OMDb) Lookup(ctx context.Context, query metadata.Query, options metadata.Options) (*metadata.Result, error) {
	if !o.Available() {
		return nil, nil
	}
	title := query.MovieTitle
	if title == "" {
		title = query.SeriesName
	}
	if title == "" {
		title = query.Title
	}
	if title == "" && query.IMDbID == "" {
		return nil, nil
	}

	q := url.Values{"apikey": {o.apiKey}}
	if query.IMDbID != "" {
		q.Set("i", query.IMDbID)
	} else {
		q.Set("t", title)
		if query.Year != 0 {
			q.Set("y", strconv.Itoa(query.Year))
		}
	}
	if query.MediaType == metadata.MediaTVSeries || query.MediaType == metadata.MediaTVEpisode {
		q.Set("type", "series")
	} else {
		q.Set("type", "movie")
	}

	var resp omdbResponse
	if err := o.http.getJSON(ctx, omdbBaseURL, q, &resp); err != nil {
		return nil, err
	}
	if resp.Response == "False" || resp.Title == "" {
		return nil, nil
	}

	result := &metadata.Result{
		Title:         resp.Title,
		Type:          query.MediaType,
		Summary:       resp.Plot,
		PrimarySource: metadata.SourceOMDb,
		QueriedAt:     time.Now().UTC(),
	}
	if resp.Poster != "" && resp.Poster != "N/A" {
		result.CoverURL = resp.Poster
	}
	yearDigits := strings.TrimSuffix(resp.Year, "–")
	if len(yearDigits) >= 4 {
		if y, err := strconv.Atoi(yearDigits[:4]); err == nil {
			result.Year = y
		}
	}
	if resp.Genre != "" {
		result.Genres = metadata.DeduplicateGenres(strings.Split(resp.Genre, ", "))
	}
	if rating, err := strconv.ParseFloat(resp.ImdbVote, 64); err == nil {
		result.Rating = rating
	}
	if votes, err := strconv.Atoi(strings.ReplaceAll(resp.Votes, ",", "")); err == nil {
		result.Votes = votes
	}
	result.SourceIDs.IMDbID = resp.ImdbID

	switch {
	case query.IMDbID != "" && query.IMDbID == resp.ImdbID:
		result.Confidence = metadata.ConfidenceHigh
	case result.Summary != "":
		result.Confidence = metadata.ConfidenceMedium
	default:
		result.Confidence = metadata.ConfidenceLow
	}
	return result, nil
}
