package jobstore

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "jobs"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)

	job, err := store.Create(Job{
		JobType:        JobTypePipeline,
		RequestPayload: map[string]any{"inputs": map[string]any{"book_title": "1984"}},
		OwnerUserID:    "user-1",
		OwnerRole:      "member",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("Create() did not assign a job id")
	}
	if job.Status != StatusPending {
		t.Errorf("expected status pending, got %q", job.Status)
	}

	got, err := store.Get(job.JobID, "user-1", "member")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.JobID != job.JobID {
		t.Errorf("expected job id %q, got %q", job.JobID, got.JobID)
	}
}

func TestGetForbidsOtherOwner(t *testing.T) {
	store := newTestStore(t)
	job, _ := store.Create(Job{JobType: JobTypeSubtitle, OwnerUserID: "user-1", OwnerRole: "member"})

	if _, err := store.Get(job.JobID, "user-2", "member"); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := store.Get(job.JobID, "user-2", "admin"); err != nil {
		t.Fatalf("admin should see any job, got %v", err)
	}
}

func TestMutateIdentityIsNoOp(t *testing.T) {
	store := newTestStore(t)
	job, _ := store.Create(Job{
		JobType:        JobTypePipeline,
		RequestPayload: map[string]any{"targets": []any{"fr", "en"}},
	})

	before, err := store.Get(job.JobID, "", "admin")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	after, err := store.Mutate(job.JobID, func(j Job) Job { return j })
	if err != nil {
		t.Fatalf("Mutate() error: %v", err)
	}

	if before.Status != after.Status || before.JobType != after.JobType {
		t.Errorf("identity mutate changed job: before=%+v after=%+v", before, after)
	}
}

func TestMutateUpdatesResumeContext(t *testing.T) {
	store := newTestStore(t)
	job, _ := store.Create(Job{
		JobType:        JobTypePipeline,
		RequestPayload: map[string]any{"book_metadata": map[string]any{"title": "Dune"}},
	})

	updatedPayload := map[string]any{"book_metadata": map[string]any{"title": "Dune Messiah"}}
	_, err := store.Mutate(job.JobID, func(j Job) Job {
		j.RequestPayload = updatedPayload
		j.ResumeContext = deepCopyPayload(updatedPayload)
		return j
	})
	if err != nil {
		t.Fatalf("Mutate() error: %v", err)
	}

	// Simulate a crash: re-open the store fresh and read back resume_context.
	reopened, err := New(store.root)
	if err != nil {
		t.Fatalf("re-opening store: %v", err)
	}
	got, err := reopened.Get(job.JobID, "", "admin")
	if err != nil {
		t.Fatalf("Get() after reopen error: %v", err)
	}

	title := got.ResumeContext["book_metadata"].(map[string]any)["title"]
	if title != "Dune Messiah" {
		t.Errorf("expected resume_context title %q, got %q", "Dune Messiah", title)
	}
}

func TestGetMissingJob(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("does-not-exist", "", "admin"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	job, _ := store.Create(Job{JobType: JobTypePipeline})

	existed, err := store.Delete(job.JobID)
	if err != nil || !existed {
		t.Fatalf("Delete() = (%v, %v), want (true, nil)", existed, err)
	}
	existed, err = store.Delete(job.JobID)
	if err != nil || existed {
		t.Fatalf("second Delete() = (%v, %v), want (false, nil)", existed, err)
	}
}
