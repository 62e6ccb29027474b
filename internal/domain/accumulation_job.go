package domain

import (
	"fmt"
	"time"
)

// AccumulationJobStatus represents the status of a queued accumulation
type AccumulationJobStatus string

const (
	AccumulationJobStatusPending    AccumulationJobStatus = "pending"
	AccumulationJobStatusProcessing AccumulationJobStatus = "processing"
	AccumulationJobStatusCompleted  AccumulationJobStatus = "completed"
	AccumulationJobStatusFailed     AccumulationJobStatus = "failed"
)

// AccumulationJob is a finished session waiting to be folded into the pool
type AccumulationJob struct {
	ID           string
	Session      Session
	Subject      SubjectEntity
	Status       AccumulationJobStatus
	Retries      int32
	EntriesSaved int
	Error        string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// NewAccumulationJob creates a pending job
func NewAccumulationJob(id string, session Session, subject SubjectEntity, createdAt time.Time) *AccumulationJob {
	return &AccumulationJob{
		ID:        id,
		Session:   session,
		Subject:   subject,
		Status:    AccumulationJobStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateAccumulationJob validates an AccumulationJob instance
func ValidateAccumulationJob(j *AccumulationJob) error {
	if j == nil {
		return fmt.Errorf("accumulation job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("accumulation job ID is required")
	}

	if j.Subject.Industry == "" {
		return fmt.Errorf("accumulation job Subject.Industry is required")
	}

	if j.Session.Topic == "" && j.Session.Conclusion == "" {
		return fmt.Errorf("accumulation job Session needs a topic or a conclusion")
	}

	if !isValidAccumulationJobStatus(j.Status) {
		return fmt.Errorf("accumulation job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("accumulation job Retries cannot be negative")
	}

	return nil
}

func isValidAccumulationJobStatus(s AccumulationJobStatus) bool {
	switch s {
	case AccumulationJobStatusPending, AccumulationJobStatusProcessing,
		AccumulationJobStatusCompleted, AccumulationJobStatusFailed:
		return true
	}
	return false
}
