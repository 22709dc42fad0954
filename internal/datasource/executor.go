package datasource

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ahmethakanbesel/mining-reports/internal/apperror"
)

// Row is one result record keyed by column name.
type Row = map[string]any

// Result is the full output of one extraction query.
type Result struct {
	Columns []string
	Rows    []Row
}

// Executor runs extraction queries. It is safe for concurrent use.
type Executor struct {
	sources *Registry
	timeout time.Duration
}

// NewExecutor returns an executor over sources. A positive timeout bounds
// every query; zero leaves queries unbounded.
func NewExecutor(sources *Registry, timeout time.Duration) *Executor {
	return &Executor{sources: sources, timeout: timeout}
}

// Execute runs tpl with its @name placeholders bound from params and collects
// every row. Any failure, including a placeholder with no value, is returned
// as a single Query error.
func (e *Executor) Execute(ctx context.Context, dataSource, tpl string, params map[string]any) (*Result, error) {
	p, ok := e.sources.lookup(dataSource)
	if !ok {
		return nil, apperror.New(apperror.Query, fmt.Sprintf("unknown data source %q", dataSource))
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rows, err := p.db.QueryContext(ctx, tpl, p.namedArgs(params)...)
	if err != nil {
		return nil, e.queryError(ctx, dataSource, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, e.queryError(ctx, dataSource, err)
	}

	res := &Result{Columns: cols, Rows: make([]Row, 0)}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, e.queryError(ctx, dataSource, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = normalize(values[i])
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, e.queryError(ctx, dataSource, err)
	}

	return res, nil
}

// normalize converts driver values into artifact-friendly ones. Text comes
// back from some drivers as []byte and becomes a string; binary data that is
// not valid UTF-8 stays []byte so it is base64 encoded in the artifact
// rather than mangled.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		if utf8.Valid(t) {
			return string(t)
		}
		return slices.Clone(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}

func (e *Executor) queryError(ctx context.Context, dataSource string, err error) error {
	msg := fmt.Sprintf("query on %s failed", dataSource)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && e.timeout > 0 {
		msg = fmt.Sprintf("query on %s timed out after %s", dataSource, e.timeout)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.QueryCanceled:
			msg += " (canceled by server)"
		case pgerrcode.IsInsufficientResources(pgErr.Code):
			msg += " (server out of resources)"
		case pgerrcode.IsSyntaxErrororAccessRuleViolation(pgErr.Code):
			msg += " (syntax or access rule violation)"
		}
	}

	return apperror.Wrap(apperror.Query, msg, err)
}
