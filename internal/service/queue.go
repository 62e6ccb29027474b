package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/telemetry"
)

// SessionQueue defers accumulation of finished sessions to the background worker.
type SessionQueue struct {
	repo    AccumulationJobRepository
	uuidGen UUIDGenerator
}

// NewSessionQueue creates a new SessionQueue instance
func NewSessionQueue(repo AccumulationJobRepository) *SessionQueue {
	return NewSessionQueueWithUUIDGen(repo, &DefaultUUIDGenerator{})
}

// NewSessionQueueWithUUIDGen creates a SessionQueue with custom UUID generator (for testing)
func NewSessionQueueWithUUIDGen(repo AccumulationJobRepository, uuidGen UUIDGenerator) *SessionQueue {
	return &SessionQueue{repo: repo, uuidGen: uuidGen}
}

// Enqueue stores a session for later accumulation.
func (q *SessionQueue) Enqueue(ctx context.Context, input AccumulateInput) (*domain.AccumulationJob, error) {
	if input.Session == nil || input.Subject == nil || strings.TrimSpace(input.Subject.Industry) == "" {
		return nil, domain.ErrMissingRequiredField
	}

	ctx, span := telemetry.StartSpan(ctx, "SessionQueue.Enqueue", telemetry.SpanAttributes{
		Industry:  input.Subject.Industry,
		Operation: "enqueue",
	})
	defer span.End()

	job := domain.NewAccumulationJob(q.uuidGen.NewString(), *input.Session, *input.Subject, time.Now().UTC())
	if err := domain.ValidateAccumulationJob(job); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid session", err)
	}

	if err := q.repo.Create(ctx, job); err != nil {
		span.SetError(err)
		return nil, domain.NewStoreError("enqueue", err)
	}
	return job, nil
}

// Get returns a queued job by ID.
func (q *SessionQueue) Get(ctx context.Context, id string) (*domain.AccumulationJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "SessionQueue.Get", telemetry.SpanAttributes{Operation: "get_job"})
	defer span.End()

	return q.repo.GetByID(ctx, id)
}
