package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionQueue_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a pending job", func(t *testing.T) {
		repo := new(MockAccumulationJobRepository)
		queue := NewSessionQueueWithUUIDGen(repo, NewMockUUIDGenerator("job-1"))

		repo.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.AccumulationJob) bool {
			return j.ID == "job-1" &&
				j.Status == domain.AccumulationJobStatusPending &&
				j.Retries == 0 &&
				j.Session.Topic == "Market entry strategy for fintech" &&
				j.Subject.Industry == "fintech"
		})).Return(nil)

		job, err := queue.Enqueue(ctx, AccumulateInput{
			Session: &domain.Session{Topic: "Market entry strategy for fintech"},
			Subject: fintechSubject(),
		})

		require.NoError(t, err)
		assert.Equal(t, "job-1", job.ID)
		repo.AssertExpectations(t)
	})

	t.Run("rejects missing subject", func(t *testing.T) {
		repo := new(MockAccumulationJobRepository)
		queue := NewSessionQueueWithUUIDGen(repo, NewMockUUIDGenerator("job-1"))

		_, err := queue.Enqueue(ctx, AccumulateInput{Session: &domain.Session{Topic: "x"}})

		assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects a session with nothing to extract", func(t *testing.T) {
		repo := new(MockAccumulationJobRepository)
		queue := NewSessionQueueWithUUIDGen(repo, NewMockUUIDGenerator("job-1"))

		_, err := queue.Enqueue(ctx, AccumulateInput{Session: &domain.Session{}, Subject: fintechSubject()})

		var domainErr *domain.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	})

	t.Run("wraps repository failures", func(t *testing.T) {
		repo := new(MockAccumulationJobRepository)
		queue := NewSessionQueueWithUUIDGen(repo, NewMockUUIDGenerator("job-1"))

		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

		_, err := queue.Enqueue(ctx, AccumulateInput{
			Session: &domain.Session{Topic: "x"},
			Subject: fintechSubject(),
		})

		var storeErr *domain.StoreError
		require.True(t, errors.As(err, &storeErr))
		assert.Equal(t, "enqueue", storeErr.Op)
	})
}

func TestSessionQueue_Get(t *testing.T) {
	repo := new(MockAccumulationJobRepository)
	queue := NewSessionQueue(repo)

	repo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrAccumulationJobNotFound)

	_, err := queue.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrAccumulationJobNotFound)
}
