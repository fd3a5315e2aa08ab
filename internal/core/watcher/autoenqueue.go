package watcher

import (
	"path/filepath"
	"strings"

	"github.com/fifosk/ebook-pipeline/internal/jobstore"
)

// jobTypeForExtension maps a dropped file's extension to the JobType a touchless run
// should create for it. Unrecognized extensions are not auto-enqueued.
var jobTypeForExtension = map[string]jobstore.JobType{
	".epub": jobstore.JobTypePipeline,
	".srt":  jobstore.JobTypeSubtitle,
	".vtt":  jobstore.JobTypeSubtitle,
	".ass":  jobstore.JobTypeSubtitle,
}

// AutoEnqueue builds an OnNewFile callback that creates a pending Job in store for every
// dropped file whose extension maps to a JobType, seeding RequestPayload with the source
// path and the touchless config's default target language and profile (spec's "C15, C16,
// C17 are consulted ... by surrounding code" note, applied to the drop-folder scenario).
// onError, if non-nil, receives failures from Store.Create so callers can log them the way
// Watcher.OnError already does for fsnotify errors.
func AutoEnqueue(store *jobstore.Store, touchless *TouchlessConfig, ownerUserID string, onError func(error)) func(string) {
	return func(path string) {
		jobType, ok := jobTypeForExtension[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return
		}
		payload := map[string]any{
			"source_path": path,
		}
		if touchless != nil {
			payload["target_lang"] = touchless.TargetLang
			payload["profile"] = touchless.DefaultProfile
			payload["subtitle_selection"] = touchless.SubtitleSelection
		}
		_, err := store.Create(jobstore.Job{
			JobType:        jobType,
			OwnerUserID:    ownerUserID,
			RequestPayload: payload,
		})
		if err != nil && onError != nil {
			onError(err)
		}
	}
}
