package watcher

import (
	"testing"

	"github.com/fifosk/ebook-pipeline/internal/jobstore"
)

func TestAutoEnqueueCreatesJobForRecognizedExtension(t *testing.T) {
	store, err := jobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("jobstore.New() error: %v", err)
	}

	touchless := &TouchlessConfig{TargetLang: "pt-br", DefaultProfile: "anime", SubtitleSelection: "largest"}
	callback := AutoEnqueue(store, touchless, "user-1", nil)
	callback("/drop/chapter.epub")

	jobs, err := store.List("user-1", "user")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.JobType != jobstore.JobTypePipeline {
		t.Errorf("expected job type pipeline for .epub, got %q", job.JobType)
	}
	if job.Status != jobstore.StatusPending {
		t.Errorf("expected job status pending, got %q", job.Status)
	}
	if job.RequestPayload["source_path"] != "/drop/chapter.epub" {
		t.Errorf("expected source_path in request payload, got %v", job.RequestPayload["source_path"])
	}
	if job.RequestPayload["target_lang"] != "pt-br" {
		t.Errorf("expected touchless target_lang carried into payload, got %v", job.RequestPayload["target_lang"])
	}
}

func TestAutoEnqueueIgnoresUnrecognizedExtension(t *testing.T) {
	store, err := jobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("jobstore.New() error: %v", err)
	}

	callback := AutoEnqueue(store, nil, "user-1", nil)
	callback("/drop/readme.txt")

	jobs, err := store.List("user-1", "user")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected no job enqueued for unrecognized extension, got %d", len(jobs))
	}
}

func TestAutoEnqueueMapsSubtitleExtensions(t *testing.T) {
	store, err := jobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("jobstore.New() error: %v", err)
	}

	callback := AutoEnqueue(store, nil, "user-1", nil)
	callback("/drop/episode01.srt")

	jobs, err := store.List("user-1", "user")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(jobs))
	}
	if jobs[0].JobType != jobstore.JobTypeSubtitle {
		t.Errorf("expected job type subtitle for .srt, got %q", jobs[0].JobType)
	}
}
