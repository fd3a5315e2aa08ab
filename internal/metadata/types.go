// Package metadata implements the MetadataPipeline (C15): a per-media-type fallback chain
// over external lookup APIs, a file-backed cache, and confidence-graded merge rules,
// generalizing original_source's metadata lookup service into Go.
package metadata

import (
	"strconv"
	"time"
)

// MediaType selects which fallback chain and client set a lookup uses.
type MediaType string

const (
	MediaBook         MediaType = "book"
	MediaMovie        MediaType = "movie"
	MediaTVSeries     MediaType = "tv_series"
	MediaTVEpisode    MediaType = "tv_episode"
	MediaYouTubeVideo MediaType = "youtube_video"
)

// ConfidenceLevel grades how reliable a result is, in increasing order.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Source identifies which external API produced a result.
type Source string

const (
	SourceOpenLibrary Source = "openlibrary"
	SourceGoogleBooks Source = "google_books"
	SourceTMDB        Source = "tmdb"
	SourceOMDb        Source = "omdb"
	SourceTVMaze      Source = "tvmaze"
	SourceWikipedia   Source = "wikipedia"
	SourceYtDlp       Source = "yt_dlp"
)

// SeriesInfo identifies a TV series/episode when MediaType is TVSeries or TVEpisode.
type SeriesInfo struct {
	SeriesID      string `json:"series_id,omitempty"`
	SeriesTitle   string `json:"series_title,omitempty"`
	Season        int    `json:"season,omitempty"`
	Episode       int    `json:"episode,omitempty"`
	EpisodeID     string `json:"episode_id,omitempty"`
	EpisodeTitle  string `json:"episode_title,omitempty"`
}

// SourceIDs collects the external identifiers a result carries, to let later calls skip
// straight to a structured API instead of a title search.
type SourceIDs struct {
	ISBN                string `json:"isbn,omitempty"`
	ISBN13              string `json:"isbn_13,omitempty"`
	OpenLibraryWorkKey  string `json:"openlibrary,omitempty"`
	OpenLibraryBookKey  string `json:"openlibrary_book,omitempty"`
	GoogleBooksID       string `json:"google_books,omitempty"`
	TMDBID              int    `json:"tmdb,omitempty"`
	IMDbID              string `json:"imdb,omitempty"`
	TVMazeShowID        int    `json:"tvmaze_show,omitempty"`
	TVMazeEpisodeID     int    `json:"tvmaze_episode,omitempty"`
	YouTubeVideoID      string `json:"youtube_video,omitempty"`
	YouTubeChannelID    string `json:"youtube_channel,omitempty"`
}

// MergeWith returns a new SourceIDs combining ids with other, preferring ids's own
// non-zero values (spec: "left operand wins", mirroring SourceIds.merge_with).
func (ids SourceIDs) MergeWith(other SourceIDs) SourceIDs {
	out := ids
	if out.ISBN == "" {
		out.ISBN = other.ISBN
	}
	if out.ISBN13 == "" {
		out.ISBN13 = other.ISBN13
	}
	if out.OpenLibraryWorkKey == "" {
		out.OpenLibraryWorkKey = other.OpenLibraryWorkKey
	}
	if out.OpenLibraryBookKey == "" {
		out.OpenLibraryBookKey = other.OpenLibraryBookKey
	}
	if out.GoogleBooksID == "" {
		out.GoogleBooksID = other.GoogleBooksID
	}
	if out.TMDBID == 0 {
		out.TMDBID = other.TMDBID
	}
	if out.IMDbID == "" {
		out.IMDbID = other.IMDbID
	}
	if out.TVMazeShowID == 0 {
		out.TVMazeShowID = other.TVMazeShowID
	}
	if out.TVMazeEpisodeID == 0 {
		out.TVMazeEpisodeID = other.TVMazeEpisodeID
	}
	if out.YouTubeVideoID == "" {
		out.YouTubeVideoID = other.YouTubeVideoID
	}
	if out.YouTubeChannelID == "" {
		out.YouTubeChannelID = other.YouTubeChannelID
	}
	return out
}

// Result is the unified output schema every provider client normalizes into.
type Result struct {
	Title   string    `json:"title"`
	Type    MediaType `json:"type"`

	Year      int      `json:"year,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	CoverURL  string   `json:"cover_url,omitempty"`
	CoverFile string   `json:"cover_file,omitempty"`

	Series *SeriesInfo `json:"series,omitempty"`

	SourceIDs SourceIDs `json:"source_ids"`

	Confidence          ConfidenceLevel `json:"confidence"`
	PrimarySource       Source          `json:"primary_source,omitempty"`
	ContributingSources []Source        `json:"contributing_sources,omitempty"`
	QueriedAt           time.Time       `json:"queried_at,omitempty"`

	Author         string  `json:"author,omitempty"`
	Language       string  `json:"language,omitempty"`
	RuntimeMinutes int     `json:"runtime_minutes,omitempty"`
	Rating         float64 `json:"rating,omitempty"`
	Votes          int     `json:"votes,omitempty"`

	ChannelName string `json:"channel_name,omitempty"`
	ViewCount   int    `json:"view_count,omitempty"`
	LikeCount   int    `json:"like_count,omitempty"`
	UploadDate  string `json:"upload_date,omitempty"`

	Error string `json:"error,omitempty"`
}

// HasRequiredFields reports whether result carries every field the pipeline treats as
// "complete enough to stop the fallback chain early" (spec §4.12 "early-stop rule").
func (r Result) HasRequiredFields() bool {
	return r.Title != "" && r.Year != 0 && len(r.Genres) > 0 && r.Summary != "" &&
		(r.CoverURL != "" || r.CoverFile != "")
}

// Query is a single lookup request; only the fields relevant to Type need be set.
type Query struct {
	MediaType MediaType

	Title  string
	Author string
	ISBN   string

	SeriesName string
	Season     int
	Episode    int
	MovieTitle string
	Year       int

	YouTubeVideoID string
	YouTubeURL     string

	SourceFilename string

	TMDBID          int
	IMDbID          string
	OpenLibraryKey  string
}

// CacheKeyParts returns the stable tuple of fields a cache key is derived from.
func (q Query) CacheKeyParts() []string {
	return []string{
		string(q.MediaType), q.Title, q.Author, q.ISBN, q.SeriesName,
		itoa(q.Season), itoa(q.Episode), q.MovieTitle, itoa(q.Year),
		q.YouTubeVideoID, itoa(q.TMDBID), q.IMDbID,
	}
}

func itoa(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// Options controls lookup behavior.
type Options struct {
	ForceRefresh        bool
	SkipCache           bool
	MaxSources          int
	Timeout             time.Duration
	IncludeRawResponses bool
	DownloadCover       bool
}

// DefaultOptions mirrors original_source's LookupOptions defaults.
func DefaultOptions() Options {
	return Options{MaxSources: 3, Timeout: 30 * time.Second, DownloadCover: true}
}
