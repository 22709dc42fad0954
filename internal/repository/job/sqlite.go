package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmethakanbesel/mining-reports/internal/apperror"
	domain "github.com/ahmethakanbesel/mining-reports/internal/job"
	"github.com/ahmethakanbesel/mining-reports/internal/report"
)

// timeFormat matches the column default strftime('%Y-%m-%dT%H:%M:%fZ').
const timeFormat = "2006-01-02T15:04:05.000Z"

const selectColumns = `SELECT id, report_type, criteria, data_source, status,
	requested_at, completed_at, artifact_ref, error_message, row_count
	FROM jobs`

type Repository struct {
	db *sql.DB
}

var _ domain.Repository = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, j *domain.Job) error {
	const query = `INSERT INTO jobs (report_type, criteria, data_source, status, requested_at)
		VALUES (?, ?, ?, ?, ?)`

	if j.Criteria == nil {
		j.Criteria = report.Criteria{}
	}
	criteria, err := json.Marshal(j.Criteria)
	if err != nil {
		return apperror.Wrap(apperror.BadRequest, "encode criteria", err)
	}
	if j.RequestedAt.IsZero() {
		j.RequestedAt = time.Now().UTC()
	}
	j.RequestedAt = j.RequestedAt.UTC().Truncate(time.Millisecond)
	j.Status = domain.StatusPending

	res, err := r.db.ExecContext(ctx, query,
		string(j.ReportType), string(criteria), j.DataSource,
		string(j.Status), j.RequestedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	j.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create job: last insert id: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.NotFound, fmt.Sprintf("job %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (r *Repository) List(ctx context.Context, f domain.ListFilter) ([]domain.Job, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.ReportType != "" {
		where = append(where, "report_type = ?")
		args = append(args, string(f.ReportType))
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY requested_at DESC, id DESC"
	switch {
	case f.Limit > 0:
		query += " LIMIT ?"
		args = append(args, f.Limit)
	case f.Offset > 0:
		query += " LIMIT -1"
	}
	if f.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, f.Offset)
	}

	return r.queryJobs(ctx, "list jobs", query, args...)
}

func (r *Repository) ListPendingBefore(ctx context.Context, before time.Time) ([]domain.Job, error) {
	query := selectColumns + ` WHERE status = 'PENDING' AND requested_at < ? ORDER BY id ASC`
	return r.queryJobs(ctx, "list pending jobs", query, before.UTC().Format(timeFormat))
}

func (r *Repository) SetCompleted(ctx context.Context, id int64, artifactRef string, rowCount int64, at time.Time) error {
	const query = `UPDATE jobs SET status = 'COMPLETED', artifact_ref = ?, row_count = ?,
		completed_at = ?, error_message = NULL
		WHERE id = ? AND status = 'PENDING'`

	if artifactRef == "" {
		return apperror.New(apperror.Internal, "completed job needs an artifact reference")
	}
	return r.terminal(ctx, id, query, artifactRef, rowCount, at.UTC().Format(timeFormat), id)
}

func (r *Repository) SetFailed(ctx context.Context, id int64, message string, at time.Time) error {
	const query = `UPDATE jobs SET status = 'FAILED', error_message = ?,
		completed_at = ?, artifact_ref = NULL
		WHERE id = ? AND status = 'PENDING'`

	if strings.TrimSpace(message) == "" {
		message = "job failed"
	}
	return r.terminal(ctx, id, query, message, at.UTC().Format(timeFormat), id)
}

// terminal applies a PENDING-guarded update and explains a miss.
func (r *Repository) terminal(ctx context.Context, id int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %d: rows affected: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return apperror.New(apperror.Conflict, fmt.Sprintf("job %d is already %s", id, current.Status))
}

func (r *Repository) queryJobs(ctx context.Context, op, query string, args ...any) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*domain.Job, error) {
	var (
		j            domain.Job
		reportType   string
		criteria     string
		status       string
		requestedAt  string
		completedAt  sql.NullString
		artifactRef  sql.NullString
		errorMessage sql.NullString
	)
	if err := s.Scan(
		&j.ID, &reportType, &criteria, &j.DataSource, &status,
		&requestedAt, &completedAt, &artifactRef, &errorMessage, &j.RowCount,
	); err != nil {
		return nil, err
	}

	j.ReportType = report.Type(reportType)
	j.Status = domain.Status(status)
	j.ArtifactRef = artifactRef.String
	j.ErrorMessage = errorMessage.String

	dec := json.NewDecoder(strings.NewReader(criteria))
	dec.UseNumber()
	if err := dec.Decode(&j.Criteria); err != nil {
		return nil, fmt.Errorf("decode criteria of job %d: %w", j.ID, err)
	}

	var err error
	if j.RequestedAt, err = parseTime(requestedAt); err != nil {
		return nil, fmt.Errorf("job %d requested_at: %w", j.ID, err)
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("job %d completed_at: %w", j.ID, err)
		}
		j.CompletedAt = &t
	}
	return &j, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeFormat, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
