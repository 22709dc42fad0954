package job

import (
	"strings"

	"github.com/ahmethakanbesel/mining-reports/internal/apperror"
	"github.com/ahmethakanbesel/mining-reports/internal/report"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type SubmitRequest struct {
	ReportType report.Type     `json:"reportType"`
	Criteria   report.Criteria `json:"criteria"`
	DataSource string          `json:"dataSource"`
}

func (r *SubmitRequest) Validate() *apperror.AppError {
	r.ReportType = report.Type(strings.TrimSpace(string(r.ReportType)))
	r.DataSource = strings.TrimSpace(r.DataSource)

	if r.ReportType == "" {
		return apperror.New(apperror.BadRequest, "reportType is required")
	}
	if r.DataSource == "" {
		return apperror.New(apperror.BadRequest, "dataSource is required")
	}
	if r.Criteria == nil {
		r.Criteria = report.Criteria{}
	}
	return nil
}

type GetJobRequest struct {
	ID int64
}

func (r GetJobRequest) Validate() *apperror.AppError {
	if r.ID <= 0 {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	return nil
}

type ListJobsRequest struct {
	Status     string
	ReportType string
	Limit      int
	Offset     int
}

func (r ListJobsRequest) Validate() *apperror.AppError {
	if r.Status != "" && !Status(strings.ToUpper(r.Status)).Valid() {
		return apperror.New(apperror.BadRequest, "invalid status: "+r.Status)
	}
	if r.Limit < 0 {
		return apperror.New(apperror.BadRequest, "limit must not be negative")
	}
	if r.Offset < 0 {
		return apperror.New(apperror.BadRequest, "offset must not be negative")
	}
	return nil
}

func (r ListJobsRequest) filter() ListFilter {
	limit := r.Limit
	switch {
	case limit == 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	return ListFilter{
		Status:     Status(strings.ToUpper(r.Status)),
		ReportType: report.Type(r.ReportType),
		Limit:      limit,
		Offset:     r.Offset,
	}
}
