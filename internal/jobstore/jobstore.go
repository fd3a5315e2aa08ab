// Package jobstore implements the JobStore (C16): one file per job, atomic tmp+rename
// mutation under a per-job mutex, and owner-scoped reads. Grounded on spec §4.14 directly;
// the atomic-write idiom is hardened from internal/core/pipeline's saveResumeState/
// LoadResumeState JSON-to-file pattern into the tmp+rename guarantee spec invariant 5
// requires.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a job id has no corresponding file.
var ErrNotFound = errors.New("jobstore: job not found")

// ErrForbidden is returned when a non-admin caller requests a job they do not own.
var ErrForbidden = errors.New("jobstore: job not visible to this user")

// JobType identifies what kind of run a job represents.
type JobType string

const (
	JobTypePipeline   JobType = "pipeline"
	JobTypeSubtitle   JobType = "subtitle"
	JobTypeYouTubeDub JobType = "youtube_dub"
)

// Status is the job's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is the persisted job descriptor (spec §3 "Job").
type Job struct {
	JobID          string         `json:"job_id"`
	JobType        JobType        `json:"job_type"`
	Status         Status         `json:"status"`
	RequestPayload map[string]any `json:"request_payload"`
	ResumeContext  map[string]any `json:"resume_context"`
	ResultPayload  map[string]any `json:"result_payload,omitempty"`
	OwnerUserID    string         `json:"owner_user_id"`
	OwnerRole      string         `json:"owner_role"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// deepCopyPayload round-trips through JSON to produce an independent deep copy, matching
// original_source's copy.deepcopy(request_payload) for resume_context snapshots.
func deepCopyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Store persists one JSON file per job under root, keyed by job id, with a per-job mutex
// guarding the read-modify-write cycle of every mutation (spec §5 "JobStore per-job mutex
// covers the full read-modify-write cycle").
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) lockFor(jobID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[jobID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[jobID] = lock
	}
	return lock
}

func (s *Store) path(jobID string) string {
	return filepath.Join(s.root, jobID+".json")
}

// Create persists a brand-new job, assigning a job id if job.JobID is empty and seeding
// ResumeContext from RequestPayload.
func (s *Store) Create(job Job) (Job, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.ResumeContext == nil {
		job.ResumeContext = deepCopyPayload(job.RequestPayload)
	}

	lock := s.lockFor(job.JobID)
	lock.Lock()
	defer lock.Unlock()
	if err := s.writeLocked(job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Get reads a job by id, applying owner visibility: a non-admin caller may only read a job
// they own (spec §4.14 "a non-admin user sees only jobs they own; an admin sees all").
func (s *Store) Get(jobID, requestingUserID, requestingUserRole string) (Job, error) {
	job, err := s.readLocked(jobID)
	if err != nil {
		return Job{}, err
	}
	if requestingUserRole != "admin" && requestingUserID != "" && job.OwnerUserID != requestingUserID {
		return Job{}, ErrForbidden
	}
	return job, nil
}

// List returns every job visible to the requesting user, newest first.
func (s *Store) List(requestingUserID, requestingUserRole string) ([]Job, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		jobID := entry.Name()[:len(entry.Name())-len(".json")]
		job, err := s.readLocked(jobID)
		if err != nil {
			continue
		}
		if requestingUserRole != "admin" && requestingUserID != "" && job.OwnerUserID != requestingUserID {
			continue
		}
		jobs = append(jobs, job)
	}
	sortJobsNewestFirst(jobs)
	return jobs, nil
}

func sortJobsNewestFirst(jobs []Job) {
	for i := 1; i < len(jobs); i++ {
		for j := i; j > 0 && jobs[j].CreatedAt.After(jobs[j-1].CreatedAt); j-- {
			jobs[j], jobs[j-1] = jobs[j-1], jobs[j]
		}
	}
}

// Mutate applies f to the current state of jobID under its per-job lock and atomically
// replaces the file, returning the mutated job. f must be a pure function of its input —
// Mutate(id, identity) is a no-op by construction (spec §8 "JobStore.mutate(id, identity)
// = no-op").
func (s *Store) Mutate(jobID string, f func(Job) Job) (Job, error) {
	lock := s.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.readUnlocked(jobID)
	if err != nil {
		return Job{}, err
	}
	updated := f(current)
	updated.JobID = current.JobID
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	if err := s.writeLocked(updated); err != nil {
		return Job{}, err
	}
	return updated, nil
}

// UpdateResumeContext snapshots payload as the job's new resume_context, the operation the
// end-to-end resume scenario exercises (spec §8 scenario 6).
func (s *Store) UpdateResumeContext(jobID string, payload map[string]any) (Job, error) {
	return s.Mutate(jobID, func(job Job) Job {
		job.ResumeContext = deepCopyPayload(payload)
		return job
	})
}

func (s *Store) readLocked(jobID string) (Job, error) {
	lock := s.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()
	return s.readUnlocked(jobID)
}

func (s *Store) readUnlocked(jobID string) (Job, error) {
	raw, err := os.ReadFile(s.path(jobID))
	if errors.Is(err, os.ErrNotExist) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return Job{}, fmt.Errorf("jobstore: decode %s: %w", jobID, err)
	}
	return job, nil
}

// writeLocked assumes the caller already holds the per-job lock; it writes to a sibling
// temp file and renames it into place so a concurrent reader never observes a partial
// write (spec invariant 5).
func (s *Store) writeLocked(job Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	destination := s.path(job.JobID)
	tmp, err := os.CreateTemp(s.root, ".job-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, destination); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Delete removes a job file, reporting whether one existed.
func (s *Store) Delete(jobID string) (bool, error) {
	lock := s.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()
	err := os.Remove(s.path(jobID))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
