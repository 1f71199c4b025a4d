package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"HistFill/internal/domain/models"
	"HistFill/pkg/cache"
)

const (
	jobKeyPrefix     = "job"
	jobLockKeyPrefix = "job:lock"

	// JobRetention is how long a job record stays readable after its last
	// update; once consumers have read the final summary it has no value.
	JobRetention = 24 * time.Hour
)

var (
	// ErrJobNotFound is returned when a job id is unknown or expired.
	ErrJobNotFound = errors.New("job not found")
	// ErrStaleJob is returned when a save carries an outdated version token,
	// meaning another runner persisted the job in between.
	ErrStaleJob = errors.New("job record is stale")
)

// CacheJobStore persists Job records with a retention TTL, an optimistic
// version token on save and a per-job lock so only one orchestrator
// invocation works a job at a time.
type CacheJobStore struct {
	store cache.Service
}

func NewCacheJobStore(store cache.Service) *CacheJobStore {
	return &CacheJobStore{store: store}
}

func jobKey(id string) string {
	return cache.GenerateKey(jobKeyPrefix, id)
}

func jobLockKey(id string) string {
	return cache.GenerateKey(jobLockKeyPrefix, id)
}

func (s *CacheJobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := s.store.Get(ctx, jobKey(id), &job)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// Save persists the job and refreshes its retention window. The job's
// Version must match the persisted one; on success it is incremented, so a
// concurrent runner holding the old version gets ErrStaleJob on its next
// save instead of silently losing an update.
func (s *CacheJobStore) Save(ctx context.Context, job *models.Job) error {
	current, err := s.Get(ctx, job.ID)
	if err != nil && !errors.Is(err, ErrJobNotFound) {
		return err
	}
	if current != nil && current.Version != job.Version {
		return fmt.Errorf("save job %s: version %d != %d: %w", job.ID, job.Version, current.Version, ErrStaleJob)
	}

	job.Version++
	job.LastUpdatedAt = time.Now().UTC()
	if err := s.store.Set(ctx, jobKey(job.ID), job, JobRetention); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// Lock acquires the per-job run lock for ttl; false when another runner
// holds it.
func (s *CacheJobStore) Lock(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return s.store.TryLock(ctx, jobLockKey(id), ttl)
}

func (s *CacheJobStore) Unlock(ctx context.Context, id string) error {
	return s.store.Unlock(ctx, jobLockKey(id))
}
