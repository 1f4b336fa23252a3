package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

// PostgresStore persists records through a marker-checking executor.
type PostgresStore struct {
	db    infra.SQLExecutor
	close func() error
}

// NewPostgresStore wraps db. closeFn, if set, runs on Close.
func NewPostgresStore(db infra.SQLExecutor, closeFn func() error) *PostgresStore {
	return &PostgresStore{db: db, close: closeFn}
}

func (r *PostgresStore) Name() string { return "postgres" }

func (r *PostgresStore) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// Migrate creates the generations table.
func (r *PostgresStore) Migrate(ctx context.Context) error {
	for _, q := range []string{sqlinline.QGenerationsCreateTable, sqlinline.QGenerationsCreateIndex} {
		if _, err := r.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("history: migrate: %w", err)
		}
	}
	return nil
}

func (r *PostgresStore) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.db.Exec(ctx, sqlinline.QGenerationInsert,
		job.ID,
		job.Kind,
		job.PostType,
		job.Prompt,
		job.Status,
		job.Error,
		job.StorageKey,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

func (r *PostgresStore) Finish(ctx context.Context, id string, status domain.JobStatus, errMsg, storageKey string) error {
	tag, err := r.db.Exec(ctx, sqlinline.QGenerationFinish, id, status, errMsg, storageKey)
	if err != nil {
		return fmt.Errorf("history: finish: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.QueryRow(ctx, sqlinline.QGenerationGet, id).Scan(
		&job.ID,
		&job.Kind,
		&job.PostType,
		&job.Prompt,
		&job.Status,
		&job.Error,
		&job.StorageKey,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: get: %w", err)
	}
	return &job, nil
}

func (r *PostgresStore) List(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := r.db.Query(ctx, sqlinline.QGenerationList, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := []domain.Job{}
	for rows.Next() {
		var job domain.Job
		if err := rows.Scan(
			&job.ID,
			&job.Kind,
			&job.PostType,
			&job.Prompt,
			&job.Status,
			&job.Error,
			&job.StorageKey,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

var _ Store = (*PostgresStore)(nil)
