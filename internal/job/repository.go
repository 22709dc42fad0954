package job

import (
	"context"
	"time"

	"github.com/ahmethakanbesel/mining-reports/internal/report"
)

// ListFilter narrows a listing. Zero values match everything; Offset skips
// that many jobs of the newest-first order.
type ListFilter struct {
	Status     Status
	ReportType report.Type
	Limit      int
	Offset     int
}

// Repository is the job record store.
//
// SetCompleted and SetFailed only apply to a job that is still PENDING. A
// job that is already terminal yields a CONFLICT error and is left as is.
type Repository interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id int64) (*Job, error)
	List(ctx context.Context, f ListFilter) ([]Job, error)
	SetCompleted(ctx context.Context, id int64, artifactRef string, rowCount int64, at time.Time) error
	SetFailed(ctx context.Context, id int64, message string, at time.Time) error
	ListPendingBefore(ctx context.Context, before time.Time) ([]Job, error)
}

// Dispatcher hands a job id to a worker. Dispatch must not wait for the
// job to run.
type Dispatcher interface {
	Dispatch(ctx context.Context, id int64) error
}
