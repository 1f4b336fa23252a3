package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"studio/internal/domain"
)

// fakePG answers the generations statements from memory. It sees queries
// after the runner has stripped their marker.
type fakePG struct {
	mu   sync.Mutex
	rows map[string]domain.Job
}

func newFakePG() *fakePG {
	return &fakePG{rows: make(map[string]domain.Job)}
}

func (f *fakePG) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if strings.Contains(query, "--sql") {
		return pgconn.CommandTag{}, fmt.Errorf("marker reached the database")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.HasPrefix(query, "CREATE"):
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.HasPrefix(query, "INSERT"):
		job := domain.Job{
			ID:         args[0].(string),
			Kind:       args[1].(domain.JobKind),
			PostType:   args[2].(string),
			Prompt:     args[3].(string),
			Status:     args[4].(domain.JobStatus),
			Error:      args[5].(string),
			StorageKey: args[6].(string),
			CreatedAt:  args[7].(time.Time),
			UpdatedAt:  args[8].(time.Time),
		}
		f.rows[job.ID] = job
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(query, "UPDATE"):
		job, ok := f.rows[args[0].(string)]
		if !ok {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		job.Status = args[1].(domain.JobStatus)
		job.Error = args[2].(string)
		job.StorageKey = args[3].(string)
		job.UpdatedAt = time.Now().UTC()
		f.rows[job.ID] = job
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected exec %q", query)
}

func (f *fakePG) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{}
	}
	return fakeRow{job: &job}
}

func (f *fakePG) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Job, 0, len(f.rows))
	for _, job := range f.rows {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit := args[0].(int); len(out) > limit {
		out = out[:limit]
	}
	return &fakeRows{jobs: out, idx: -1}, nil
}

func scanJob(job *domain.Job, dest []any) error {
	if len(dest) != 9 {
		return fmt.Errorf("scan: %d destinations", len(dest))
	}
	*dest[0].(*string) = job.ID
	*dest[1].(*domain.JobKind) = job.Kind
	*dest[2].(*string) = job.PostType
	*dest[3].(*string) = job.Prompt
	*dest[4].(*domain.JobStatus) = job.Status
	*dest[5].(*string) = job.Error
	*dest[6].(*string) = job.StorageKey
	*dest[7].(*time.Time) = job.CreatedAt
	*dest[8].(*time.Time) = job.UpdatedAt
	return nil
}

type fakeRow struct {
	job *domain.Job
}

func (r fakeRow) Scan(dest ...any) error {
	if r.job == nil {
		return pgx.ErrNoRows
	}
	return scanJob(r.job, dest)
}

type fakeRows struct {
	jobs []domain.Job
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }

func (r *fakeRows) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in fake rows")
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.jobs)
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanJob(&r.jobs[r.idx], dest)
}
