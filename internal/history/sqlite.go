package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

// SQLiteStore persists records in an embedded database.
type SQLiteStore struct {
	db     *sql.DB
	logger infra.Logger
}

func NewSQLiteStore(db *sql.DB, logger infra.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger}
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// statement strips the marker line and logs it at debug level.
func (s *SQLiteStore) statement(query string) (string, error) {
	marker, body, err := infra.ExtractMarker(query)
	if err != nil {
		return "", err
	}
	s.logger.Debug().Str("marker", marker).Msg("sqlite statement")
	return body, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, q := range []string{sqlinline.QLiteGenerationsCreateTable, sqlinline.QLiteGenerationsCreateIndex} {
		body, err := s.statement(q)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, body); err != nil {
			return fmt.Errorf("history: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, job *domain.Job) error {
	body, err := s.statement(sqlinline.QLiteGenerationInsert)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, body,
		job.ID,
		string(job.Kind),
		job.PostType,
		job.Prompt,
		string(job.Status),
		job.Error,
		job.StorageKey,
		job.CreatedAt.UnixNano(),
		job.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Finish(ctx context.Context, id string, status domain.JobStatus, errMsg, storageKey string) error {
	body, err := s.statement(sqlinline.QLiteGenerationFinish)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, body, string(status), errMsg, storageKey, time.Now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("history: finish: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (domain.Job, error) {
	var (
		job              domain.Job
		kind, status     string
		created, updated int64
	)
	err := row.Scan(&job.ID, &kind, &job.PostType, &job.Prompt, &status, &job.Error, &job.StorageKey, &created, &updated)
	if err != nil {
		return job, err
	}
	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	job.CreatedAt = time.Unix(0, created).UTC()
	job.UpdatedAt = time.Unix(0, updated).UTC()
	return job, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	body, err := s.statement(sqlinline.QLiteGenerationGet)
	if err != nil {
		return nil, err
	}
	job, err := scanSQLite(s.db.QueryRowContext(ctx, body, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: get: %w", err)
	}
	return &job, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]domain.Job, error) {
	body, err := s.statement(sqlinline.QLiteGenerationList)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, body, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := []domain.Job{}
	for rows.Next() {
		job, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

var _ Store = (*SQLiteStore)(nil)
