package queue

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/repositories"
)

// MemoryStore is a process-local job store for tests and single-instance setups
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*storedJob
	seq  int64
}

type storedJob struct {
	job entities.Job
	seq int64
}

var _ repositories.JobRepository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*storedJob)}
}

func (s *MemoryStore) Add(_ context.Context, job *entities.Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return false, nil
	}
	s.seq++
	s.jobs[job.ID] = &storedJob{job: cloneJob(*job), seq: s.seq}
	return true, nil
}

func (s *MemoryStore) ClaimNext(_ context.Context, queue string, now time.Time) (*entities.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *storedJob
	for _, sj := range s.jobs {
		if sj.job.Queue != queue || !sj.job.IsDue(now) {
			continue
		}
		if next == nil || sj.job.RunAt.Before(next.job.RunAt) ||
			(sj.job.RunAt.Equal(next.job.RunAt) && sj.seq < next.seq) {
			next = sj
		}
	}
	if next == nil {
		return nil, nil
	}
	next.job.MarkActive(now)
	out := cloneJob(next.job)
	return &out, nil
}

func (s *MemoryStore) Update(_ context.Context, job *entities.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, ok := s.jobs[job.ID]
	if !ok {
		// Save semantics: re-create a record removed underneath us
		s.seq++
		s.jobs[job.ID] = &storedJob{job: cloneJob(*job), seq: s.seq}
		return nil
	}
	sj.job = cloneJob(*job)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*entities.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	out := cloneJob(sj.job)
	return &out, nil
}

func (s *MemoryStore) List(_ context.Context, queue string, statuses []entities.JobStatus, limit int) ([]entities.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit == 0 {
		limit = 100
	}
	matched := make([]*storedJob, 0)
	for _, sj := range s.jobs {
		if sj.job.Queue != queue {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, sj.job.Status) {
			continue
		}
		matched = append(matched, sj)
	}
	// newest first
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]entities.Job, len(matched))
	for i, sj := range matched {
		out[i] = cloneJob(sj.job)
	}
	return out, nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)
	return true, nil
}

func (s *MemoryStore) Stalled(_ context.Context, lockedBefore time.Time) ([]entities.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entities.Job
	for _, sj := range s.jobs {
		if sj.job.Status == entities.JobStatusActive && sj.job.LockedAt != nil && sj.job.LockedAt.Before(lockedBefore) {
			out = append(out, cloneJob(sj.job))
		}
	}
	return out, nil
}

func (s *MemoryStore) Trim(_ context.Context, queue string, status entities.JobStatus, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*storedJob
	for _, sj := range s.jobs {
		if sj.job.Queue == queue && sj.job.Status == status {
			matched = append(matched, sj)
		}
	}
	if len(matched) <= keep {
		return 0, nil
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].job.UpdatedAt.Equal(matched[j].job.UpdatedAt) {
			return matched[i].job.UpdatedAt.After(matched[j].job.UpdatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	var removed int64
	for _, sj := range matched[keep:] {
		delete(s.jobs, sj.job.ID)
		removed++
	}
	return removed, nil
}

func cloneJob(j entities.Job) entities.Job {
	if j.Payload != nil {
		j.Payload = slices.Clone(j.Payload)
	}
	if j.LockedAt != nil {
		t := *j.LockedAt
		j.LockedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		j.FinishedAt = &t
	}
	return j
}
