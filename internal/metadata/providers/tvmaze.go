package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fifosk/ebook-pipeline/internal/metadata"
)

const tvmazeBaseURL = "https://api.tvmaze.com"

// TVMaze covers tv_series and tv_episode lookups with a free, key-less API, grounded on
// original_source/modules/services/metadata/clients/tvmaze.py.
type TVMaze struct {
	http httpClient
}

func NewTVMaze() *TVMaze {
	return &TVMaze{http: newHTTPClient(10 * time.Second)}
}

func (t *TVMaze) Name() metadata.Source { return metadata.SourceTVMaze }
func (t *TVMaze) SupportedTypes() []metadata.MediaType {
	return []metadata.MediaType{metadata.MediaTVSeries, metadata.MediaTVEpisode}
}
func (t *TVMaze) RequiresAPIKey() bool { return false }
func (t *TVMaze) Available() bool      { return true }

type tvmazeShow struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Genres   []string `json:"genres"`
	Premiered string  `json:"premiered"`
	Language string   `json:"language"`
	Rating   struct {
		Average float64 `json:"average"`
	} `json:"rating"`
	Summary string `json:"summary"`
	Image   struct {
		Original string `json:"original"`
	} `json:"image"`
	Externals struct {
		IMDb string `json:"imdb"`
	} `json:"externals"`
}

type tvmazeEpisode struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
	Season  int    `json:"season"`
	Number  int    `json:"number"`
	ID      int    `json:"id"`
}

func stripHTML(s string) string {
	s = strings.ReplaceAll(s, "<p>", "")
	s = strings.ReplaceAll(s, "</p>", "")
	s = strings.ReplaceAll(s, "<b>", "")
	return strings.ReplaceAll(s, "</b>", "")
}

func (t *TVMaze) Lookup(ctx context.Context, query metadata.Query, options metadata.Options) (*metadata.Result, error) {
	name := query.SeriesName
	if name == "" {
		name = query.Title
	}
	if name == "" {
		return nil, nil
	}

	var shows []struct {
		Show tvmazeShow `json:"show"`
	}
	if err := t.http.getJSON(ctx, tvmazeBaseURL+"/search/shows", url.Values{"q": {name}}, &shows); err != nil {
		return nil, err
	}
	if len(shows) == 0 {
		return nil, nil
	}
	show := shows[0].Show

	result := &metadata.Result{
		Title:         show.Name,
		Type:          metadata.MediaTVSeries,
		Summary:       stripHTML(show.Summary),
		Genres:        metadata.DeduplicateGenres(show.Genres),
		Language:      show.Language,
		Rating:        show.Rating.Average,
		PrimarySource: metadata.SourceTVMaze,
		Confidence:    metadata.ConfidenceMedium,
		QueriedAt:     time.Now().UTC(),
	}
	if len(show.Premiered) >= 4 {
		if y, err := strconv.Atoi(show.Premiered[:4]); err == nil {
			result.Year = y
		}
	}
	if show.Image.Original != "" {
		result.CoverURL = show.Image.Original
	}
	result.SourceIDs.TVMazeShowID = show.ID
	result.SourceIDs.IMDbID = show.Externals.IMDb

	if query.MediaType != metadata.MediaTVEpisode || query.Season == 0 || query.Episode == 0 {
		return result, nil
	}

	var episode tvmazeEpisode
	epQuery := url.Values{"season": {strconv.Itoa(query.Season)}, "number": {strconv.Itoa(query.Episode)}}
	if err := t.http.getJSON(ctx, tvmazeBaseURL+"/shows/"+strconv.Itoa(show.ID)+"/episodebynumber", epQuery, &episode); err != nil {
		return result, nil
	}
	result.Type = metadata.MediaTVEpisode
	result.Summary = stripHTML(episode.Summary)
	result.Series = &metadata.SeriesInfo{
		SeriesID:     strconv.Itoa(show.ID),
		SeriesTitle:  show.Name,
		Season:       query.Season,
		Episode:      query.Episode,
		EpisodeID:    strconv.Itoa(episode.ID),
		EpisodeTitle: episode.Name,
	}
	result.SourceIDs.TVMazeEpisodeID = episode.ID
	return result, nil
}
