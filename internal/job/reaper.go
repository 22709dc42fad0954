package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/mining-reports/internal/apperror"
	"github.com/ahmethakanbesel/mining-reports/internal/observability"
)

// Tracker reports whether a job is queued or running in this process.
type Tracker interface {
	Holds(id int64) bool
}

// Reaper closes out jobs that have been PENDING for longer than staleAfter,
// typically because the process running them died. They are marked FAILED
// and never requeued; the user resubmits to try again. Jobs the tracker
// still holds are skipped however old they are.
type Reaper struct {
	repo       Repository
	tracker    Tracker
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
}

// NewReaper returns a reaper. tracker may be nil when no jobs run in-process.
func NewReaper(repo Repository, tracker Tracker, staleAfter, interval time.Duration) *Reaper {
	return &Reaper{
		repo:       repo,
		tracker:    tracker,
		staleAfter: staleAfter,
		interval:   interval,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			slog.Error("reaper: sweep", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep marks every stale PENDING job FAILED and returns how many it closed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now := r.now()
	stale, err := r.repo.ListPendingBefore(ctx, now.Add(-r.staleAfter))
	if err != nil {
		return 0, err
	}

	msg := fmt.Sprintf("abandoned: still PENDING after %s; resubmit the report to try again", r.staleAfter)
	n := 0
	for _, j := range stale {
		if r.tracker != nil && r.tracker.Holds(j.ID) {
			slog.Debug("reaper: job still held by local pool", "job", j.ID)
			continue
		}
		err := r.repo.SetFailed(ctx, j.ID, msg, now)
		if apperror.Is(err, apperror.Conflict) {
			// Finished between the listing and the update.
			continue
		}
		if err != nil {
			return n, err
		}
		n++
		observability.JobsAbandoned.Inc()
		slog.Warn("reaper: job abandoned", "job", j.ID, "reportType", j.ReportType, "requestedAt", j.RequestedAt)
	}
	return n, nil
}
