package history

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/storage"
	"studio/pkg/zip"
)

// Recorder tracks generation runs. Store failures are logged and never
// fail the run being recorded.
type Recorder struct {
	repo   domain.JobRepository
	files  *storage.FileStore
	logger infra.Logger
	now    func() time.Time
}

// NewRecorder records into repo. files may be nil, in which case images
// are not kept.
func NewRecorder(repo domain.JobRepository, files *storage.FileStore, logger infra.Logger) *Recorder {
	if repo == nil {
		repo = NewMemoryStore()
	}
	return &Recorder{repo: repo, files: files, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Start records a running job.
func (r *Recorder) Start(ctx context.Context, kind domain.JobKind, postType, prompt string) *Record {
	now := r.now()
	rec := &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		PostType:  postType,
		Prompt:    prompt,
		Status:    domain.JobStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.repo.Create(ctx, rec); err != nil {
		r.logger.Error().Err(err).Str("kind", string(kind)).Msg("record generation start failed")
	}
	return rec
}

// Succeed marks rec done and stores image, if any, under
// generations/YYYY/MM/DD/<id>.<ext>.
func (r *Recorder) Succeed(ctx context.Context, rec *Record, image []byte, ext string) {
	if rec == nil {
		return
	}
	if len(image) > 0 && r.files != nil {
		if ext == "" {
			ext = "png"
		}
		key := fmt.Sprintf("generations/%s/%s.%s", rec.CreatedAt.Format("2006/01/02"), rec.ID, ext)
		stored, err := r.files.Write(ctx, key, image)
		if err != nil {
			r.logger.Error().Err(err).Str("id", rec.ID).Msg("store generated image failed")
		} else {
			rec.StorageKey = stored
		}
	}
	rec.Status = domain.JobStatusSucceeded
	rec.UpdatedAt = r.now()
	r.finish(ctx, rec)
}

// Fail marks rec failed with cause.
func (r *Recorder) Fail(ctx context.Context, rec *Record, cause error) {
	if rec == nil {
		return
	}
	rec.Status = domain.JobStatusFailed
	if cause != nil {
		rec.Error = cause.Error()
	}
	rec.UpdatedAt = r.now()
	r.finish(ctx, rec)
}

func (r *Recorder) finish(ctx context.Context, rec *Record) {
	// The request context may already be cancelled when a run fails.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.repo.Finish(ctx, rec.ID, rec.Status, rec.Error, rec.StorageKey); err != nil {
		r.logger.Error().Err(err).Str("id", rec.ID).Str("status", string(rec.Status)).Msg("record generation finish failed")
	}
}

// List returns recent records, newest first.
func (r *Recorder) List(ctx context.Context, limit int) ([]Record, error) {
	return r.repo.List(ctx, ClampLimit(limit))
}

// Get returns a single record.
func (r *Recorder) Get(ctx context.Context, id string) (*Record, error) {
	return r.repo.Get(ctx, id)
}

// Archive zips the stored images of the most recent records. It returns
// the archive and how many images it holds. Missing files are skipped.
func (r *Recorder) Archive(ctx context.Context, limit int) ([]byte, int, error) {
	records, err := r.List(ctx, limit)
	if err != nil {
		return nil, 0, err
	}
	var assets []zip.Asset
	if r.files != nil {
		for _, rec := range records {
			if rec.StorageKey == "" {
				continue
			}
			data, err := r.files.Read(ctx, rec.StorageKey)
			if errors.Is(err, domain.ErrNotFound) {
				r.logger.Warn().Str("id", rec.ID).Str("key", rec.StorageKey).Msg("archived image missing")
				continue
			}
			if err != nil {
				return nil, 0, err
			}
			assets = append(assets, zip.Asset{Filename: path.Base(rec.StorageKey), Modified: rec.UpdatedAt, Data: data})
		}
	}
	out, err := zip.ArchiveAssets(assets)
	if err != nil {
		return nil, 0, err
	}
	return out, len(assets), nil
}
