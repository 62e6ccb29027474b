package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(createdAt time.Time) *domain.AccumulationJob {
	return domain.NewAccumulationJob(
		uuid.NewString(),
		domain.Session{
			ID:    "session-1",
			Topic: "Market entry strategy for fintech",
			Metadata: domain.SessionMetadata{KeyInsights: []domain.Insight{
				domain.TextInsight("SMBs complain about slow onboarding"),
				{Title: "Open banking", Content: "APIs mandated", KnowledgeType: domain.KnowledgeTypeRegulation},
			}},
		},
		domain.SubjectEntity{ID: "venture-1", Industry: "fintech", Tags: []string{"b2b"}},
		createdAt,
	)
}

func TestJobStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("create and get keeps the session payload", func(t *testing.T) {
		jobs := NewJobStore(openTestDB(t))

		job := newJob(now)
		require.NoError(t, jobs.Create(ctx, job))

		got, err := jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AccumulationJobStatusPending, got.Status)
		assert.True(t, now.Equal(got.CreatedAt))
		assert.Equal(t, "Market entry strategy for fintech", got.Session.Topic)
		require.Len(t, got.Session.Metadata.KeyInsights, 2)
		assert.Equal(t, "SMBs complain about slow onboarding", got.Session.Metadata.KeyInsights[0].Text)
		assert.Equal(t, domain.KnowledgeTypeRegulation, got.Session.Metadata.KeyInsights[1].KnowledgeType)
		assert.Equal(t, "venture-1", got.Subject.ID)
		assert.Nil(t, got.ProcessedAt)
	})

	t.Run("get missing job", func(t *testing.T) {
		jobs := NewJobStore(openTestDB(t))

		_, err := jobs.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrAccumulationJobNotFound)
	})

	t.Run("claim pending takes oldest first and only once", func(t *testing.T) {
		jobs := NewJobStore(openTestDB(t))

		third := newJob(now)
		first := newJob(now.Add(-2 * time.Minute))
		second := newJob(now.Add(-time.Minute))
		for _, j := range []*domain.AccumulationJob{third, first, second} {
			require.NoError(t, jobs.Create(ctx, j))
		}

		claimed, err := jobs.ClaimPending(ctx, 2)
		require.NoError(t, err)
		require.Len(t, claimed, 2)
		assert.Equal(t, first.ID, claimed[0].ID)
		assert.Equal(t, second.ID, claimed[1].ID)
		assert.Equal(t, domain.AccumulationJobStatusProcessing, claimed[0].Status)

		rest, err := jobs.GetPendingJobs(ctx)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, third.ID, rest[0].ID)

		none, err := jobs.ClaimPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("retry then complete", func(t *testing.T) {
		jobs := NewJobStore(openTestDB(t))

		job := newJob(now)
		require.NoError(t, jobs.Create(ctx, job))

		require.NoError(t, jobs.IncrementRetries(ctx, job.ID))
		require.NoError(t, jobs.UpdateJobStatus(ctx, job.ID, domain.AccumulationJobStatusPending, "retry 1: boom"))

		got, err := jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, int32(1), got.Retries)
		assert.Equal(t, "retry 1: boom", got.Error)

		require.NoError(t, jobs.CompleteJob(ctx, job.ID, 2))

		got, err = jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AccumulationJobStatusCompleted, got.Status)
		assert.Equal(t, 2, got.EntriesSaved)
		assert.Empty(t, got.Error)
		require.NotNil(t, got.ProcessedAt)
	})

	t.Run("failed jobs record the error", func(t *testing.T) {
		jobs := NewJobStore(openTestDB(t))

		job := newJob(now)
		require.NoError(t, jobs.Create(ctx, job))
		require.NoError(t, jobs.UpdateJobStatus(ctx, job.ID, domain.AccumulationJobStatusFailed, "max retries exceeded"))

		got, err := jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AccumulationJobStatusFailed, got.Status)
		assert.NotNil(t, got.ProcessedAt)
	})

	t.Run("save session replaces the payload", func(t *testing.T) {
		jobs := NewJobStore(openTestDB(t))

		job := newJob(now)
		require.NoError(t, jobs.Create(ctx, job))

		session := job.Session
		session.Metadata.KeyInsights = []domain.Insight{domain.TextInsight("Rising adoption of embedded finance")}
		require.NoError(t, jobs.SaveSession(ctx, job.ID, session))

		got, err := jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, got.Session.Metadata.KeyInsights, 1)
	})

	t.Run("updates on missing jobs", func(t *testing.T) {
		jobs := NewJobStore(openTestDB(t))

		assert.ErrorIs(t, jobs.IncrementRetries(ctx, "missing"), domain.ErrAccumulationJobNotFound)
		assert.ErrorIs(t, jobs.CompleteJob(ctx, "missing", 1), domain.ErrAccumulationJobNotFound)
		assert.ErrorIs(t, jobs.UpdateJobStatus(ctx, "missing", domain.AccumulationJobStatusFailed, ""), domain.ErrAccumulationJobNotFound)
	})
}
