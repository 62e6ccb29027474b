package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
)

const knowledgeColumns = `id, industry, segment, problem_area, knowledge_type, title, content, confidence,
	last_verified_at, extraction_count, tags, source_session_id, source_venture_id, created_at, updated_at`

// KnowledgeStore persists knowledge entries in SQLite. The table's UNIQUE
// constraint backs the dedup key.
type KnowledgeStore struct {
	db *DB
}

// NewKnowledgeStore creates a KnowledgeStore over an open database.
func NewKnowledgeStore(db *DB) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

var _ service.KnowledgeStore = (*KnowledgeStore)(nil)

func (s *KnowledgeStore) Scan(ctx context.Context, filter service.ScanFilter) ([]*domain.KnowledgeEntry, error) {
	where := []string{"industry = ?"}
	args := []any{filter.Industry}
	if filter.Segment != "" {
		where = append(where, "segment = ?")
		args = append(args, filter.Segment)
	}
	if filter.KnowledgeType != "" {
		where = append(where, "knowledge_type = ?")
		args = append(args, string(filter.KnowledgeType))
	}
	args = append(args, scanLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_entries
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY last_verified_at DESC, id
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("scan knowledge: %w", err)
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

func (s *KnowledgeStore) FindByKey(ctx context.Context, key domain.KnowledgeKey) (*domain.KnowledgeEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_entries
		 WHERE industry = ? AND knowledge_type = ? AND title = ?`,
		key.Industry, string(key.KnowledgeType), key.Title,
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrKnowledgeNotFound
		}
		return nil, fmt.Errorf("find by key: %w", err)
	}
	return e, nil
}

func (s *KnowledgeStore) Insert(ctx context.Context, e *domain.KnowledgeEntry) (*domain.KnowledgeEntry, error) {
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO knowledge_entries (`+knowledgeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+knowledgeColumns,
		e.ID, e.Industry, e.Segment, e.ProblemArea, string(e.KnowledgeType), e.Title, e.Content, e.Confidence,
		e.LastVerifiedAt.UnixMilli(), e.ExtractionCount, tags,
		nullString(e.SourceSessionID), nullString(e.SourceVentureID),
		e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli(),
	)
	inserted, err := scanEntry(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrKnowledgeAlreadyExists
		}
		return nil, fmt.Errorf("insert knowledge: %w", err)
	}
	return inserted, nil
}

// Update applies a merge in one statement so concurrent merges never lose an
// increment.
func (s *KnowledgeStore) Update(ctx context.Context, id string, patch domain.KnowledgePatch) (*domain.KnowledgeEntry, error) {
	tags, err := encodeTags(patch.Tags)
	if err != nil {
		return nil, err
	}
	verified := patch.VerifiedAt.UnixMilli()

	row := s.db.QueryRowContext(ctx,
		`UPDATE knowledge_entries
		 SET confidence = MIN(1.0, confidence + ?),
		     extraction_count = extraction_count + 1,
		     content = ?,
		     tags = ?,
		     last_verified_at = ?,
		     source_session_id = COALESCE(?, source_session_id),
		     source_venture_id = COALESCE(?, source_venture_id),
		     updated_at = ?
		 WHERE id = ?
		 RETURNING `+knowledgeColumns,
		patch.ConfidenceStep, patch.Content, tags, verified,
		nullString(patch.SourceSessionID), nullString(patch.SourceVentureID), verified, id,
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrKnowledgeNotFound
		}
		return nil, fmt.Errorf("update knowledge: %w", err)
	}
	return e, nil
}

func (s *KnowledgeStore) FindByPatterns(ctx context.Context, filter service.PatternFilter) ([]*domain.KnowledgeEntry, error) {
	var (
		conds []string
		args  []any
	)
	if len(filter.Tags) > 0 {
		conds = append(conds, `EXISTS (SELECT 1 FROM json_each(knowledge_entries.tags) WHERE json_each.value IN (`+placeholders(len(filter.Tags))+`))`)
		for _, t := range filter.Tags {
			args = append(args, t)
		}
	}
	if len(filter.ProblemAreas) > 0 {
		conds = append(conds, `problem_area IN (`+placeholders(len(filter.ProblemAreas))+`)`)
		for _, p := range filter.ProblemAreas {
			args = append(args, p)
		}
	}
	if len(conds) == 0 {
		return []*domain.KnowledgeEntry{}, nil
	}
	args = append(args, scanLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_entries
		 WHERE `+strings.Join(conds, " OR ")+`
		 ORDER BY last_verified_at DESC, id
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("find by patterns: %w", err)
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.KnowledgeEntry, error) {
	var (
		e                          domain.KnowledgeEntry
		kt, tags                   string
		verified, created, updated int64
		sessionID, ventureID       sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Industry, &e.Segment, &e.ProblemArea, &kt, &e.Title, &e.Content,
		&e.Confidence, &verified, &e.ExtractionCount, &tags, &sessionID, &ventureID,
		&created, &updated); err != nil {
		return nil, err
	}
	e.KnowledgeType = domain.KnowledgeType(kt)
	e.LastVerifiedAt = time.UnixMilli(verified).UTC()
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	e.SourceSessionID = sessionID.String
	e.SourceVentureID = ventureID.String
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", e.ID, err)
	}
	return &e, nil
}

func scanEntryRows(rows *sql.Rows) ([]*domain.KnowledgeEntry, error) {
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

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
