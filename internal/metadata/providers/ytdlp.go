package providers

import (
	"context"
	"encoding/json"
	"os/exec"
	"regexp"

	"github.com/fifosk/ebook-pipeline/internal/metadata"
)

var youtubeURLPattern = regexp.MustCompile(`(?i)(?:youtu\.be/|youtube\.com/)(?:watch\?v=|shorts/|embed/)?([A-Za-z0-9_-]{11})`)

// YtDlp shells out to the yt-dlp binary (the only provider in the youtube_video chain),
// grounded on original_source/modules/services/metadata/clients/ytdlp.py, adapted from a
// Python-library import to the same exec.Command idiom internal/core/dependencies uses for
// ffmpeg/mkvtoolnix.
type YtDlp struct {
	binary string
}

func NewYtDlp(binary string) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{binary: binary}
}

func (y *YtDlp) Name() metadata.Source { return metadata.SourceYtDlp }
func (y *YtDlp) SupportedTypes() []metadata.MediaType {
	return []metadata.MediaType{metadata.MediaYouTubeVideo}
}
func (y *YtDlp) RequiresAPIKey() bool { return false }
func (y *YtDlp) Available() bool {
	_, err := exec.LookPath(y.binary)
	return err == nil
}

type ytDlpInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Channel     string `json:"channel"`
	UploadDate  string `json:"upload_date"`
	ViewCount   int    `json:"view_count"`
	LikeCount   int    `json:"like_count"`
	Duration    int    `json:"duration"`
	Thumbnail   string `json:"thumbnail"`
	ID          string `json:"id"`
	ChannelID   string `json:"channel_id"`
	Categories  []string `json:"categories"`
}

func extractYouTubeID(query metadata.Query) string {
	if query.YouTubeVideoID != "" {
		return query.YouTubeVideoID
	}
	if m := youtubeURLPattern.FindStringSubmatch(query.YouTubeURL); len(m) == 2 {
		return m[1]
	}
	return ""
}

func (y *YtDlp) Lookup(ctx context.Context, query metadata.Query, options metadata.Options) (*metadata.Result, error) {
	if query.MediaType != metadata.MediaYouTubeVideo {
		return nil, nil
	}
	videoID := extractYouTubeID(query)
	if videoID == "" {
		return nil, nil
	}
	if !y.Available() {
		return nil, nil
	}

	url := "https://www.youtube.com/watch?v=" + videoID
	cmd := exec.CommandContext(ctx, y.binary, "--dump-json", "--skip-download", "--no-warnings", url)
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	var info ytDlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, err
	}

	result := &metadata.Result{
		Title:          info.Title,
		Type:           metadata.MediaYouTubeVideo,
		Summary:        truncate(info.Description, 520),
		Genres:         metadata.DeduplicateGenres(info.Categories),
		CoverURL:       info.Thumbnail,
		RuntimeMinutes: info.Duration / 60,
		ChannelName:    info.Channel,
		ViewCount:      info.ViewCount,
		LikeCount:      info.LikeCount,
		UploadDate:     info.UploadDate,
		PrimarySource:  metadata.SourceYtDlp,
		Confidence:     metadata.ConfidenceHigh,
	}
	result.SourceIDs.YouTubeVideoID = info.ID
	result.SourceIDs.YouTubeChannelID = info.ChannelID
	return result, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
