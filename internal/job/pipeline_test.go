package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/mining-reports/internal/artifact"
	"github.com/ahmethakanbesel/mining-reports/internal/datasource"
	"github.com/ahmethakanbesel/mining-reports/internal/report"
	"github.com/ahmethakanbesel/mining-reports/internal/testutil"
)

// TestPipeline runs submitted jobs through the pool against the seeded
// operational database.
func TestPipeline(t *testing.T) {
	sources := datasource.NewRegistry()
	require.NoError(t, sources.Register("prod", datasource.DriverSQLite, testutil.OpenOperational(t)))

	b, err := artifact.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	store := artifact.NewStore(b)

	repo := newMockRepo()
	worker := NewWorker(repo, report.Default(), datasource.NewExecutor(sources, time.Minute), store)
	pool := NewPool(worker, 2)
	svc := NewService(repo, sources, store)
	svc.SetDispatcher(pool)

	cancel, done := startPool(t, pool)
	defer func() {
		cancel()
		<-done
	}()

	ctx := context.Background()
	ok, err := svc.Submit(ctx, SubmitRequest{ReportType: report.MaterialLoading, Criteria: january(), DataSource: "prod"})
	require.NoError(t, err)
	bad, err := svc.Submit(ctx, SubmitRequest{
		ReportType: report.MaterialLoading,
		Criteria:   report.Criteria{"fromDate": "2024-01-31", "toDate": "2024-01-01"},
		DataSource: "prod",
	})
	require.NoError(t, err)
	unknown, err := svc.Submit(ctx, SubmitRequest{ReportType: "CrusherThroughput", Criteria: january(), DataSource: "prod"})
	require.NoError(t, err)

	waitFor(t, func() bool {
		jobs, err := svc.List(ctx, ListJobsRequest{Status: string(StatusPending)})
		return err == nil && len(jobs) == 0
	})

	jobs, err := svc.List(ctx, ListJobsRequest{})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	for i := range jobs {
		requireTerminal(t, &jobs[i])
	}

	got, err := svc.Get(ctx, GetJobRequest{ID: ok.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, int64(3), got.RowCount)

	data, _, err := svc.Artifact(ctx, GetJobRequest{ID: ok.ID})
	require.NoError(t, err)
	a, err := artifact.Decode(data)
	require.NoError(t, err)
	assert.Len(t, a.Rows, 3)

	got, err = svc.Get(ctx, GetJobRequest{ID: bad.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "is after toDate")

	got, err = svc.Get(ctx, GetJobRequest{ID: unknown.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "unknown report type")
}
