package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cloo-solutions/knowpool/internal/domain"
)

const jobColumns = `id, session, subject, status, retries, entries_saved, error, created_at, processed_at`

// JobStore persists queued accumulation jobs in SQLite.
type JobStore struct {
	db *DB
}

// NewJobStore creates a JobStore over an open database.
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *domain.AccumulationJob) error {
	session, err := json.Marshal(job.Session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	subject, err := json.Marshal(job.Subject)
	if err != nil {
		return fmt.Errorf("encode subject: %w", err)
	}

	var processedAt sql.NullInt64
	if job.ProcessedAt != nil {
		processedAt = sql.NullInt64{Int64: job.ProcessedAt.UnixMilli(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accumulation_jobs (`+jobColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(session), string(subject), string(job.Status), job.Retries, job.EntriesSaved,
		nullString(job.Error), job.CreatedAt.UnixMilli(), processedAt,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *JobStore) GetByID(ctx context.Context, id string) (*domain.AccumulationJob, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM accumulation_jobs WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccumulationJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimPending marks up to limit pending jobs as processing and returns them
// oldest first. The claim is a single statement, so two workers never share a job.
func (s *JobStore) ClaimPending(ctx context.Context, limit int) ([]*domain.AccumulationJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`UPDATE accumulation_jobs
		 SET status = ?, processed_at = NULL
		 WHERE id IN (
		     SELECT id FROM accumulation_jobs
		     WHERE status = ?
		     ORDER BY created_at ASC
		     LIMIT ?
		 )
		 RETURNING `+jobColumns,
		string(domain.AccumulationJobStatusProcessing), string(domain.AccumulationJobStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

func (s *JobStore) GetPendingJobs(ctx context.Context) ([]*domain.AccumulationJob, error) {
	return s.ClaimPending(ctx, 100)
}

func (s *JobStore) UpdateJobStatus(ctx context.Context, id string, status domain.AccumulationJobStatus, errMsg string) error {
	var processedAt sql.NullInt64
	if status == domain.AccumulationJobStatusCompleted || status == domain.AccumulationJobStatusFailed {
		processedAt = sql.NullInt64{Int64: time.Now().UTC().UnixMilli(), Valid: true}
	}

	return s.exec(ctx,
		`UPDATE accumulation_jobs SET status = ?, error = ?, processed_at = ? WHERE id = ?`,
		string(status), nullString(errMsg), processedAt, id,
	)
}

func (s *JobStore) CompleteJob(ctx context.Context, id string, entriesSaved int) error {
	return s.exec(ctx,
		`UPDATE accumulation_jobs
		 SET status = ?, entries_saved = ?, error = NULL, processed_at = ?
		 WHERE id = ?`,
		string(domain.AccumulationJobStatusCompleted), entriesSaved, time.Now().UTC().UnixMilli(), id,
	)
}

func (s *JobStore) SaveSession(ctx context.Context, id string, session domain.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.exec(ctx, `UPDATE accumulation_jobs SET session = ? WHERE id = ?`, string(payload), id)
}

func (s *JobStore) IncrementRetries(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE accumulation_jobs SET retries = retries + 1 WHERE id = ?`, id)
}

func (s *JobStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAccumulationJobNotFound
	}
	return nil
}

func scanJob(row rowScanner) (*domain.AccumulationJob, error) {
	var (
		job              domain.AccumulationJob
		session, subject string
		status           string
		errMsg           sql.NullString
		created          int64
		processed        sql.NullInt64
	)
	if err := row.Scan(&job.ID, &session, &subject, &status, &job.Retries, &job.EntriesSaved,
		&errMsg, &created, &processed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(session), &job.Session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if err := json.Unmarshal([]byte(subject), &job.Subject); err != nil {
		return nil, fmt.Errorf("decode subject: %w", err)
	}
	job.Status = domain.AccumulationJobStatus(status)
	job.Error = errMsg.String
	job.CreatedAt = time.UnixMilli(created).UTC()
	if processed.Valid {
		t := time.UnixMilli(processed.Int64).UTC()
		job.ProcessedAt = &t
	}
	return &job, nil
}
