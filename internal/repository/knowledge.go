package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const knowledgeColumns = `id, industry, segment, problem_area, knowledge_type, title, content, confidence,
	last_verified_at, extraction_count, tags, source_session_id, source_venture_id, created_at, updated_at`

// KnowledgeRepository is the Postgres knowledge store. The unique index on
// (industry, knowledge_type, title) backs the dedup key.
type KnowledgeRepository struct {
	db dbtx
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: pool}
}

func NewKnowledgeRepositoryWithTx(tx pgx.Tx) *KnowledgeRepository {
	return &KnowledgeRepository{db: tx}
}

var _ service.KnowledgeStore = (*KnowledgeRepository)(nil)

func (r *KnowledgeRepository) Scan(ctx context.Context, filter service.ScanFilter) ([]*domain.KnowledgeEntry, error) {
	var (
		where = []string{"industry = $1"}
		args  = []any{filter.Industry}
	)
	if filter.Segment != "" {
		args = append(args, filter.Segment)
		where = append(where, fmt.Sprintf("segment = $%d", len(args)))
	}
	if filter.KnowledgeType != "" {
		args = append(args, filter.KnowledgeType)
		where = append(where, fmt.Sprintf("knowledge_type = $%d", len(args)))
	}
	args = append(args, scanLimit(filter.Limit))

	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_entries
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY last_verified_at DESC, id
		 LIMIT $`+fmt.Sprint(len(args)),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

func (r *KnowledgeRepository) FindByKey(ctx context.Context, key domain.KnowledgeKey) (*domain.KnowledgeEntry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_entries
		 WHERE industry = $1 AND knowledge_type = $2 AND title = $3`,
		key.Industry, key.KnowledgeType, key.Title,
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *KnowledgeRepository) Insert(ctx context.Context, e *domain.KnowledgeEntry) (*domain.KnowledgeEntry, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO knowledge_entries (`+knowledgeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING `+knowledgeColumns,
		e.ID, e.Industry, e.Segment, e.ProblemArea, e.KnowledgeType, e.Title, e.Content, e.Confidence,
		e.LastVerifiedAt, e.ExtractionCount, tagsOrEmpty(e.Tags),
		nullableString(e.SourceSessionID), nullableString(e.SourceVentureID), e.CreatedAt, e.UpdatedAt,
	)
	inserted, err := scanEntry(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrKnowledgeAlreadyExists
		}
		return nil, err
	}
	return inserted, nil
}

// Update reinforces an entry in a single statement so concurrent merges never
// lose an increment.
func (r *KnowledgeRepository) Update(ctx context.Context, id string, patch domain.KnowledgePatch) (*domain.KnowledgeEntry, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE knowledge_entries
		 SET confidence = LEAST(1.0, confidence + $2),
		     extraction_count = extraction_count + 1,
		     content = $3,
		     tags = $4,
		     last_verified_at = $5,
		     source_session_id = COALESCE($6, source_session_id),
		     source_venture_id = COALESCE($7, source_venture_id),
		     updated_at = $5
		 WHERE id = $1
		 RETURNING `+knowledgeColumns,
		id, patch.ConfidenceStep, patch.Content, tagsOrEmpty(patch.Tags), patch.VerifiedAt,
		nullableString(patch.SourceSessionID), nullableString(patch.SourceVentureID),
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *KnowledgeRepository) FindByPatterns(ctx context.Context, filter service.PatternFilter) ([]*domain.KnowledgeEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_entries
		 WHERE tags && $1::text[] OR problem_area = ANY($2::text[])
		 ORDER BY last_verified_at DESC, id
		 LIMIT $3`,
		tagsOrEmpty(filter.Tags), tagsOrEmpty(filter.ProblemAreas), scanLimit(filter.Limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

func scanEntry(row pgx.Row) (*domain.KnowledgeEntry, error) {
	var e domain.KnowledgeEntry
	var sessionID, ventureID *string
	if err := row.Scan(&e.ID, &e.Industry, &e.Segment, &e.ProblemArea, &e.KnowledgeType, &e.Title, &e.Content,
		&e.Confidence, &e.LastVerifiedAt, &e.ExtractionCount, &e.Tags, &sessionID, &ventureID,
		&e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.SourceSessionID = derefString(sessionID)
	e.SourceVentureID = derefString(ventureID)
	return &e, nil
}

func scanEntryRows(rows pgx.Rows) ([]*domain.KnowledgeEntry, error) {
	results := []*domain.KnowledgeEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func scanLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
