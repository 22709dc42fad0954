package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/ahmethakanbesel/mining-reports/internal/apperror"
	"github.com/ahmethakanbesel/mining-reports/internal/artifact"
	"github.com/ahmethakanbesel/mining-reports/internal/datasource"
	"github.com/ahmethakanbesel/mining-reports/internal/observability"
	"github.com/ahmethakanbesel/mining-reports/internal/report"
)

var errClosedDuringRun = errors.New("job closed during run")

type Resolver interface {
	Resolve(t report.Type) (report.ExtractionSpec, error)
}

type Executor interface {
	Execute(ctx context.Context, dataSource, tpl string, params map[string]any) (*datasource.Result, error)
}

type ArtifactWriter interface {
	Write(ctx context.Context, jobID int64, columns []string, rows []artifact.Row) (string, error)
}

// Worker takes one PENDING job to its terminal state.
type Worker struct {
	repo      Repository
	reports   Resolver
	executor  Executor
	artifacts ArtifactWriter
	now       func() time.Time
}

func NewWorker(repo Repository, reports Resolver, executor Executor, artifacts ArtifactWriter) *Worker {
	return &Worker{
		repo:      repo,
		reports:   reports,
		executor:  executor,
		artifacts: artifacts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run resolves, binds and executes the job's report, writes the artifact and
// records exactly one terminal state. Every failure after the job is loaded
// ends up as FAILED with a message; the returned error only reports that the
// job could not be loaded or its terminal state could not be recorded.
func (w *Worker) Run(ctx context.Context, id int64) error {
	j, err := w.repo.Get(ctx, id)
	if err != nil {
		slog.Error("worker: load job", "job", id, "error", err)
		return fmt.Errorf("load job %d: %w", id, err)
	}
	if j.Status != StatusPending {
		slog.Warn("worker: job already terminal", "job", id, "status", j.Status)
		return apperror.New(apperror.Conflict, fmt.Sprintf("job %d is already %s", id, j.Status))
	}

	log := slog.With("job", j.ID, "reportType", j.ReportType, "dataSource", j.DataSource)
	log.Info("worker: processing job")

	start := time.Now()
	ref, rows, runErr := w.execute(ctx, j)
	elapsed := time.Since(start)

	// The terminal write must land even if ctx was cancelled mid-run.
	wctx := context.WithoutCancel(ctx)
	at := w.now()

	if errors.Is(runErr, errClosedDuringRun) {
		log.Warn("worker: job closed by another writer during run, artifact not published", "duration", elapsed)
		return apperror.Wrap(apperror.Conflict, fmt.Sprintf("job %d closed during run", j.ID), runErr)
	}

	if runErr != nil {
		msg := failureMessage(runErr)
		if err := w.repo.SetFailed(wctx, j.ID, msg, at); err != nil {
			log.Error("worker: record failure", "error", err, "cause", runErr)
			return fmt.Errorf("record failure of job %d: %w", j.ID, err)
		}
		observability.JobsProcessed.WithLabelValues(string(j.ReportType), string(StatusFailed)).Inc()
		log.Warn("worker: job failed", "status", StatusFailed, "error", msg, "duration", elapsed)
		return nil
	}

	if err := w.repo.SetCompleted(wctx, j.ID, ref, int64(rows), at); err != nil {
		log.Error("worker: record completion", "artifactRef", ref, "error", err)
		if !apperror.Is(err, apperror.Conflict) {
			// Leave no job PENDING behind a published artifact.
			msg := "record completion: " + err.Error()
			if ferr := w.repo.SetFailed(wctx, j.ID, msg, w.now()); ferr != nil {
				log.Error("worker: record failure after completion error", "error", ferr)
			} else {
				observability.JobsProcessed.WithLabelValues(string(j.ReportType), string(StatusFailed)).Inc()
			}
		}
		return fmt.Errorf("record completion of job %d: %w", j.ID, err)
	}
	observability.JobsProcessed.WithLabelValues(string(j.ReportType), string(StatusCompleted)).Inc()
	observability.JobDuration.WithLabelValues(string(j.ReportType)).Observe(elapsed.Seconds())
	observability.ArtifactRows.WithLabelValues(string(j.ReportType)).Observe(float64(rows))
	log.Info("worker: job completed", "status", StatusCompleted, "artifactRef", ref, "rows", rows, "duration", elapsed)
	return nil
}

func (w *Worker) execute(ctx context.Context, j *Job) (ref string, rows int, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker: panic", "job", j.ID, "panic", r, "stack", string(debug.Stack()))
			err = apperror.New(apperror.Internal, fmt.Sprintf("internal error: %v", r))
		}
	}()

	spec, err := w.reports.Resolve(j.ReportType)
	if err != nil {
		return "", 0, err
	}

	params, err := spec.Bind(j.Criteria)
	if err != nil {
		return "", 0, err
	}

	res, err := w.executor.Execute(ctx, j.DataSource, spec.Query, params)
	if err != nil {
		return "", 0, err
	}

	columns := res.Columns
	if len(columns) == 0 {
		columns = spec.Columns
	}

	// A reaper may have closed the job while the query ran. An artifact must
	// not appear for a job that is no longer PENDING.
	if cur, gerr := w.repo.Get(context.WithoutCancel(ctx), j.ID); gerr == nil && cur.Status != StatusPending {
		return "", 0, fmt.Errorf("job %d is %s: %w", j.ID, cur.Status, errClosedDuringRun)
	}

	ref, err = w.artifacts.Write(ctx, j.ID, columns, res.Rows)
	if err != nil {
		return "", 0, err
	}
	return ref, len(res.Rows), nil
}

// failureMessage turns a run error into the text stored on the job.
func failureMessage(err error) string {
	msg := err.Error()
	if apperror.CodeOf(err) == apperror.Validation {
		msg = "invalid criteria: " + msg
	}
	if msg == "" {
		msg = "job failed"
	}
	return msg
}
