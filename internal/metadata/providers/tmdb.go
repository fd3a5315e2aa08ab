package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fifosk/ebook-pipeline/internal/metadata"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

// TMDB covers movie, tv_series, and tv_episode lookups, grounded on
// original_source/modules/services/metadata/clients/tmdb.py's _lookup_movie/
// _lookup_tv_series/_lookup_tv_episode split.
type TMDB struct {
	http   httpClient
	apiKey string
}

func NewTMDB(apiKey string) *TMDB {
	return &TMDB{http: newHTTPClient(10 * time.Second), apiKey: apiKey}
}

func (t *TMDB) Name() metadata.Source { return metadata.SourceTMDB }
func (t *TMDB) SupportedTypes() []metadata.MediaType {
	return []metadata.MediaType{metadata.MediaMovie, metadata.MediaTVSeries, metadata.MediaTVEpisode}
}
func (t *TMDB) RequiresAPIKey() bool { return true }
func (t *TMDB) Available() bool      { return t.apiKey != "" }

type tmdbSearchResult struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Overview     string  `json:"overview"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	PosterPath   string  `json:"poster_path"`
}

type tmdbSearchResponse struct {
	Results []tmdbSearchResult `json:"results"`
}

func (t *TMDB) getWithAuth(ctx context.Context, path string, params url.Values, v any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", t.apiKey)
	return t.http.getJSON(ctx, tmdbBaseURL+path, params, v)
}

func (t *TMDB) Lookup(ctx context.Context, query metadata.Query, options metadata.Options) (*metadata.Result, error) {
	if !t.Available() {
		return nil, nil
	}
	switch query.MediaType {
	case metadata.MediaMovie:
		return t.lookupMovie(ctx, query)
	case metadata.MediaTVSeries, metadata.MediaTVEpisode:
		return t.lookupTV(ctx, query)
	default:
		return nil, nil
	}
}

func (t *TMDB) lookupMovie(ctx context.Context, query metadata.Query) (*metadata.Result, error) {
	title := query.MovieTitle
	if title == "" {
		title = query.Title
	}
	if title == "" && query.TMDBID == 0 {
		return nil, nil
	}

	var resp tmdbSearchResponse
	params := url.Values{"query": {title}}
	if query.Year != 0 {
		params.Set("year", strconv.Itoa(query.Year))
	}
	if err := t.getWithAuth(ctx, "/search/movie", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	m := resp.Results[0]

	result := &metadata.Result{
		Title:         m.Title,
		Type:          metadata.MediaMovie,
		Summary:       m.Overview,
		Rating:        m.VoteAverage,
		Votes:         m.VoteCount,
		PrimarySource: metadata.SourceTMDB,
		QueriedAt:     time.Now().UTC(),
	}
	if len(m.ReleaseDate) >= 4 {
		if y, err := strconv.Atoi(m.ReleaseDate[:4]); err == nil {
			result.Year = y
		}
	}
	if m.PosterPath != "" {
		result.CoverURL = "https://image.tmdb.org/t/p/w500" + m.PosterPath
	}
	result.SourceIDs.TMDBID = m.ID
	result.Confidence = metadata.ConfidenceMedium
	if query.Year != 0 && result.Year == query.Year {
		result.Confidence = metadata.ConfidenceHigh
	}
	return result, nil
}

type tmdbTVResult struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	FirstAirDate string  `json:"first_air_date"`
	Overview     string  `json:"overview"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	PosterPath   string  `json:"poster_path"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

type tmdbTVSearchResponse struct {
	Results []tmdbTVResult `json:"results"`
}

func (t *TMDB) lookupTV(ctx context.Context, query metadata.Query) (*metadata.Result, error) {
	name := query.SeriesName
	if name == "" {
		name = query.Title
	}
	if name == "" {
		return nil, nil
	}

	var resp tmdbTVSearchResponse
	if err := t.getWithAuth(ctx, "/search/tv", url.Values{"query": {name}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	show := resp.Results[0]

	result := &metadata.Result{
		Title:         show.Name,
		Type:          query.MediaType,
		Summary:       show.Overview,
		Rating:        show.VoteAverage,
		Votes:         show.VoteCount,
		PrimarySource: metadata.SourceTMDB,
		Confidence:    metadata.ConfidenceMedium,
		QueriedAt:     time.Now().UTC(),
	}
	if len(show.FirstAirDate) >= 4 {
		if y, err := strconv.Atoi(show.FirstAirDate[:4]); err == nil {
			result.Year = y
		}
	}
	if show.PosterPath != "" {
		result.CoverURL = "https://image.tmdb.org/t/p/w500" + show.PosterPath
	}
	genres := make([]string, 0, len(show.Genres))
	for _, g := range show.Genres {
		genres = append(genres, g.Name)
	}
	result.Genres = metadata.DeduplicateGenres(genres)
	result.SourceIDs.TMDBID = show.ID

	if query.MediaType == metadata.MediaTVEpisode && query.Season != 0 && query.Episode != 0 {
		result.Series = &metadata.SeriesInfo{
			SeriesID:    strconv.Itoa(show.ID),
			SeriesTitle: show.Name,
			Season:      query.Season,
			Episode:     query.Episode,
			EpisodeID:   episodeCode(query.Season, query.Episode),
		}
	}
	return result, nil
}

func episodeCode(season, episode int) string {
	return "S" + pad2(season) + "E" + pad2(episode)
}

func pad2(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}
