package models

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a batch fill job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition out of the status is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition validates a state-machine edge:
// pending -> running -> {completed|paused|failed}, paused -> running.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobPending:
		return to == JobRunning || to == JobFailed
	case JobRunning:
		return to == JobCompleted || to == JobPaused || to == JobFailed || to == JobRunning
	case JobPaused:
		return to == JobRunning || to == JobFailed
	default:
		return false
	}
}

// Job is the unit of a batch ingestion run. The symbol list is fixed at
// creation; CurrentChunk only ever advances.
type Job struct {
	ID               string    `json:"jobId"`
	TotalSymbols     int       `json:"totalSymbols"`
	SymbolsToProcess []string  `json:"symbolsToProcess"`
	ChunkSize        int       `json:"chunkSize"`
	TotalChunks      int       `json:"totalChunks"`
	CurrentChunk     int       `json:"currentChunk"`
	Processed        int       `json:"processed"`
	Successful       int       `json:"successful"`
	Failed           int       `json:"failed"`
	Status           JobStatus `json:"status"`
	FailureReason    string    `json:"failureReason,omitempty"`
	// Version is an optimistic concurrency token; the store rejects a save
	// whose version does not match the persisted record.
	Version       int64     `json:"version"`
	StartedAt     time.Time `json:"startedAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	ETASeconds    int64     `json:"estimatedSecondsRemaining"`

	Errors   []SymbolError `json:"errors,omitempty"`
	Warnings []DataWarning `json:"warnings,omitempty"`
}

// Progress is the externally visible view of a job.
type Progress struct {
	JobID      string    `json:"jobId"`
	Processed  int       `json:"processed"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Status     JobStatus `json:"status"`
	ETASeconds int64     `json:"estimatedSecondsRemaining"`
}

// Progress derives the progress view from the job record.
func (j *Job) Progress() *Progress {
	pct := 0.0
	if j.TotalSymbols > 0 {
		pct = float64(j.Processed) / float64(j.TotalSymbols) * 100
	}
	return &Progress{
		JobID:      j.ID,
		Processed:  j.Processed,
		Total:      j.TotalSymbols,
		Percentage: pct,
		Successful: j.Successful,
		Failed:     j.Failed,
		Status:     j.Status,
		ETASeconds: j.ETASeconds,
	}
}

// SymbolError records a per-symbol total failure inside a chunk.
type SymbolError struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

// DataWarning records a dropped year that had a price but incomplete
// fundamentals.
type DataWarning struct {
	Ticker string `json:"ticker"`
	Year   string `json:"year"`
	Issue  string `json:"issue"`
}

// FillResult accumulates the outcome of one chunk (or one whole run). It is
// transient: folded into Job counters, never persisted on its own.
type FillResult struct {
	Success  []string      `json:"success"`
	Errors   []SymbolError `json:"errors"`
	Warnings []DataWarning `json:"warnings"`
}

// Merge folds another result into this one.
func (r *FillResult) Merge(other *FillResult) {
	if other == nil {
		return
	}
	r.Success = append(r.Success, other.Success...)
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// EliminatedSymbol is a symbol skipped by the coverage check because it sits
// in the failed-ticker registry.
type EliminatedSymbol struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Coverage partitions a requested symbol list. Missing, Eliminated and
// Cached are disjoint and together equal the (deduplicated) input.
type Coverage struct {
	Missing    []string           `json:"missing"`
	Eliminated []EliminatedSymbol `json:"eliminated"`
	Cached     []string           `json:"alreadyCached"`
}

// ChunkCount computes ceil(n/size).
func ChunkCount(n, size int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	return (n + size - 1) / size, nil
}
