package job

import (
	"time"

	"github.com/ahmethakanbesel/mining-reports/internal/report"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transition can happen from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// Job is one report request. ArtifactRef is set only when COMPLETED and
// ErrorMessage only when FAILED.
type Job struct {
	ID           int64           `json:"id"`
	ReportType   report.Type     `json:"reportType"`
	Criteria     report.Criteria `json:"criteria"`
	DataSource   string          `json:"dataSource"`
	Status       Status          `json:"status"`
	RequestedAt  time.Time       `json:"requestedAt"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	ArtifactRef  string          `json:"artifactRef,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	RowCount     int64           `json:"rowCount"`
}
