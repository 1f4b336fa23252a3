package domain

import "context"

// JobRepository persists generation runs.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	Finish(ctx context.Context, id string, status JobStatus, errMsg, storageKey string) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, limit int) ([]Job, error)
}
