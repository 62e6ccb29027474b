package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/cloo-solutions/knowpool/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
)

// AccumulationJobRepository defines the job persistence the worker needs
type AccumulationJobRepository interface {
	// GetPendingJobs retrieves and claims pending accumulation jobs
	GetPendingJobs(ctx context.Context) ([]*domain.AccumulationJob, error)

	UpdateJobStatus(ctx context.Context, jobID string, status domain.AccumulationJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, jobID string, entriesSaved int) error

	// SaveSession stores the session after insight extraction so retries skip the model call
	SaveSession(ctx context.Context, jobID string, session domain.Session) error
}

// SessionAccumulator folds one session into the knowledge pool
type SessionAccumulator interface {
	Accumulate(ctx context.Context, input service.AccumulateInput) (int, error)
}

// InsightExtractor derives key insights from a session that arrived without any
type InsightExtractor interface {
	ExtractInsights(ctx context.Context, session domain.Session, subject domain.SubjectEntity) ([]domain.Insight, error)
}

// AccumulationWorker processes queued sessions
type AccumulationWorker struct {
	repo        AccumulationJobRepository
	accumulator SessionAccumulator
	extractor   InsightExtractor
}

// NewAccumulationWorker creates a new AccumulationWorker. extractor may be nil.
func NewAccumulationWorker(repo AccumulationJobRepository, accumulator SessionAccumulator, extractor InsightExtractor) *AccumulationWorker {
	return &AccumulationWorker{
		repo:        repo,
		accumulator: accumulator,
		extractor:   extractor,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *AccumulationWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending accumulation jobs", len(jobs))

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *AccumulationWorker) processJob(ctx context.Context, job *domain.AccumulationJob) error {
	ctx, span := telemetry.StartSpan(ctx, "AccumulationWorker.processJob", telemetry.SpanAttributes{
		Industry:  job.Subject.Industry,
		Segment:   job.Subject.Segment,
		JobID:     job.ID,
		Operation: "process_job",
	})
	defer span.End()

	session := job.Session
	if w.extractor != nil && len(session.Metadata.KeyInsights) == 0 {
		session = w.enrich(ctx, job)
	}

	subject := job.Subject
	saved, err := w.accumulator.Accumulate(ctx, service.AccumulateInput{Session: &session, Subject: &subject})
	if err != nil {
		span.SetError(err)
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.CompleteJob(ctx, job.ID, saved); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}
	telemetry.RecordJob(string(domain.AccumulationJobStatusCompleted))

	log.Printf("Job %s completed: %d entries written for %s", job.ID, saved, job.Subject.Industry)
	return nil
}

// enrich asks the extractor for insights. Extraction is best effort: on any
// failure the session is accumulated as it was queued.
func (w *AccumulationWorker) enrich(ctx context.Context, job *domain.AccumulationJob) domain.Session {
	session := job.Session

	insights, err := w.extractor.ExtractInsights(ctx, session, job.Subject)
	if err != nil {
		log.Printf("Job %s: insight extraction failed: %v", job.ID, err)
		return session
	}
	if len(insights) == 0 {
		return session
	}

	session.Metadata.KeyInsights = insights
	if err := w.repo.SaveSession(ctx, job.ID, session); err != nil {
		log.Printf("Job %s: failed to save extracted insights: %v", job.ID, err)
	}
	return session
}

// handleJobFailure handles a failed job with retry logic
func (w *AccumulationWorker) handleJobFailure(ctx context.Context, job *domain.AccumulationJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.AccumulationJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		telemetry.RecordJob(string(domain.AccumulationJobStatusFailed))
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.AccumulationJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}
	telemetry.RecordJob("retried")

	return nil
}
