package job

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ahmethakanbesel/mining-reports/internal/apperror"
)

type mockRepo struct {
	mu     sync.Mutex
	jobs   map[int64]*Job
	nextID int64

	createErr   error
	setErr      error
	completeErr error
}

var _ Repository = (*mockRepo)(nil)

func newMockRepo() *mockRepo {
	return &mockRepo{jobs: make(map[int64]*Job), nextID: 1}
}

func (m *mockRepo) Create(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	j.ID = m.nextID
	m.nextID++
	if j.RequestedAt.IsZero() {
		j.RequestedAt = time.Now().UTC()
	}
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, apperror.New(apperror.NotFound, "job not found")
	}
	cp := *j
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.ReportType != "" && j.ReportType != f.ReportType {
			continue
		}
		result = append(result, *j)
	}
	slices.SortFunc(result, func(a, b Job) int { return int(b.ID - a.ID) })
	result = result[min(f.Offset, len(result)):]
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (m *mockRepo) terminal(id int64, apply func(j *Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	j, ok := m.jobs[id]
	if !ok {
		return apperror.New(apperror.NotFound, "job not found")
	}
	if j.Status != StatusPending {
		return apperror.New(apperror.Conflict, fmt.Sprintf("job %d is already %s", id, j.Status))
	}
	apply(j)
	return nil
}

func (m *mockRepo) SetCompleted(_ context.Context, id int64, ref string, rowCount int64, at time.Time) error {
	m.mu.Lock()
	err := m.completeErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.terminal(id, func(j *Job) {
		j.Status = StatusCompleted
		j.ArtifactRef = ref
		j.RowCount = rowCount
		j.CompletedAt = &at
	})
}

func (m *mockRepo) SetFailed(_ context.Context, id int64, msg string, at time.Time) error {
	return m.terminal(id, func(j *Job) {
		j.Status = StatusFailed
		j.ErrorMessage = msg
		j.CompletedAt = &at
	})
}

func (m *mockRepo) ListPendingBefore(_ context.Context, before time.Time) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Job
	for _, j := range m.jobs {
		if j.Status == StatusPending && j.RequestedAt.Before(before) {
			result = append(result, *j)
		}
	}
	slices.SortFunc(result, func(a, b Job) int { return int(a.ID - b.ID) })
	return result, nil
}

type mockDispatcher struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (d *mockDispatcher) Dispatch(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, id)
	return nil
}

type staticSources map[string]bool

func (s staticSources) Has(name string) bool { return s[name] }
