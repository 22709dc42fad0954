package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/mining-reports/internal/apperror"
	"github.com/ahmethakanbesel/mining-reports/internal/observability"
)

// DataSources reports which named operational stores exist.
type DataSources interface {
	Has(name string) bool
}

// ArtifactReader returns the stored bytes behind an artifact reference.
type ArtifactReader interface {
	ReadRaw(ctx context.Context, ref string) ([]byte, error)
}

type Service struct {
	repo       Repository
	sources    DataSources
	artifacts  ArtifactReader
	dispatcher Dispatcher
	now        func() time.Time
}

func NewService(repo Repository, sources DataSources, artifacts ArtifactReader) *Service {
	return &Service{
		repo:      repo,
		sources:   sources,
		artifacts: artifacts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetDispatcher sets the dispatcher that receives newly submitted jobs.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Submit creates a PENDING job and hands it to the dispatcher without
// waiting for it to run. The report type is not checked here; an unknown
// type fails in the worker like any other resolution error.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.sources != nil && !s.sources.Has(req.DataSource) {
		return nil, apperror.New(apperror.BadRequest, fmt.Sprintf("unknown data source %q", req.DataSource))
	}

	j := &Job{
		ReportType: req.ReportType,
		Criteria:   req.Criteria,
		DataSource: req.DataSource,
		Status:     StatusPending,
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}
	observability.JobsSubmitted.WithLabelValues(string(j.ReportType)).Inc()
	slog.Info("job submitted", "job", j.ID, "reportType", j.ReportType, "dataSource", j.DataSource)

	if s.dispatcher == nil {
		return j, nil
	}
	if err := s.dispatcher.Dispatch(ctx, j.ID); err != nil {
		// Nothing will pick the job up, so close it out rather than leave it
		// PENDING forever.
		slog.Error("job dispatch failed", "job", j.ID, "error", err)
		msg := "dispatch failed: " + err.Error()
		at := s.now()
		if ferr := s.repo.SetFailed(context.WithoutCancel(ctx), j.ID, msg, at); ferr != nil {
			return nil, fmt.Errorf("dispatch job %d: %w (mark failed: %v)", j.ID, err, ferr)
		}
		j.Status = StatusFailed
		j.ErrorMessage = msg
		j.CompletedAt = &at
	}
	return j, nil
}

func (s *Service) Get(ctx context.Context, req GetJobRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, req.ID)
}

// List returns jobs newest first.
func (s *Service) List(ctx context.Context, req ListJobsRequest) ([]Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, req.filter())
}

// Artifact returns the stored artifact of a COMPLETED job. PENDING and
// FAILED jobs have nothing to retrieve and yield CONFLICT.
func (s *Service) Artifact(ctx context.Context, req GetJobRequest) ([]byte, *Job, error) {
	j, err := s.Get(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	switch j.Status {
	case StatusPending:
		return nil, j, apperror.New(apperror.Conflict, fmt.Sprintf("job %d is still PENDING", j.ID))
	case StatusFailed:
		return nil, j, apperror.New(apperror.Conflict, fmt.Sprintf("job %d FAILED: %s", j.ID, j.ErrorMessage))
	}

	data, err := s.artifacts.ReadRaw(ctx, j.ArtifactRef)
	if err != nil {
		return nil, j, err
	}
	return data, j, nil
}
