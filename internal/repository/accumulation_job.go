package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, session, subject, status, retries, entries_saved, error, created_at, processed_at`

type AccumulationJobRepository struct {
	db dbtx
}

func NewAccumulationJobRepository(pool *pgxpool.Pool) *AccumulationJobRepository {
	return &AccumulationJobRepository{db: pool}
}

func NewAccumulationJobRepositoryWithTx(tx pgx.Tx) *AccumulationJobRepository {
	return &AccumulationJobRepository{db: tx}
}

func (r *AccumulationJobRepository) Create(ctx context.Context, job *domain.AccumulationJob) error {
	session, subject, err := encodeJobPayload(job)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO accumulation_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, session, subject, job.Status, job.Retries, job.EntriesSaved, nullableString(job.Error),
		job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *AccumulationJobRepository) GetByID(ctx context.Context, id string) (*domain.AccumulationJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM accumulation_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccumulationJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending marks up to limit pending jobs as processing and returns them.
// Concurrent workers never claim the same job.
func (r *AccumulationJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.AccumulationJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM accumulation_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE accumulation_jobs
		 SET status = $3,
		     processed_at = NULL
		 FROM cte
		 WHERE accumulation_jobs.id = cte.id
		 RETURNING accumulation_jobs.id, accumulation_jobs.session, accumulation_jobs.subject,
		           accumulation_jobs.status, accumulation_jobs.retries, accumulation_jobs.entries_saved,
		           accumulation_jobs.error, accumulation_jobs.created_at, accumulation_jobs.processed_at`,
		domain.AccumulationJobStatusPending, limit, domain.AccumulationJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.AccumulationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *AccumulationJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.AccumulationJob, error) {
	return r.ClaimPending(ctx, 100)
}

func (r *AccumulationJobRepository) UpdateJobStatus(ctx context.Context, id string, status domain.AccumulationJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.AccumulationJobStatusCompleted || status == domain.AccumulationJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE accumulation_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAccumulationJobNotFound
	}
	return nil
}

func (r *AccumulationJobRepository) CompleteJob(ctx context.Context, id string, entriesSaved int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE accumulation_jobs
		 SET status = $1, entries_saved = $2, error = NULL, processed_at = $3
		 WHERE id = $4`,
		domain.AccumulationJobStatusCompleted, entriesSaved, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAccumulationJobNotFound
	}
	return nil
}

func (r *AccumulationJobRepository) SaveSession(ctx context.Context, id string, session domain.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	cmdTag, err := r.db.Exec(ctx, `UPDATE accumulation_jobs SET session = $1 WHERE id = $2`, payload, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAccumulationJobNotFound
	}
	return nil
}

func (r *AccumulationJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE accumulation_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAccumulationJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.AccumulationJob, error) {
	var job domain.AccumulationJob
	var session, subject []byte
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &session, &subject, &job.Status, &job.Retries, &job.EntriesSaved,
		&errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	if err := decodeJobPayload(&job, session, subject); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

func encodeJobPayload(job *domain.AccumulationJob) ([]byte, []byte, error) {
	session, err := json.Marshal(job.Session)
	if err != nil {
		return nil, nil, fmt.Errorf("encode session: %w", err)
	}
	subject, err := json.Marshal(job.Subject)
	if err != nil {
		return nil, nil, fmt.Errorf("encode subject: %w", err)
	}
	return session, subject, nil
}

func decodeJobPayload(job *domain.AccumulationJob, session, subject []byte) error {
	if err := json.Unmarshal(session, &job.Session); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	if err := json.Unmarshal(subject, &job.Subject); err != nil {
		return fmt.Errorf("decode subject: %w", err)
	}
	return nil
}
