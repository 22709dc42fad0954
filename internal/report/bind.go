package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ahmethakanbesel/mining-reports/internal/apperror"
)

const dateFormat = "2006-01-02"

// Bind validates c against the spec's params and returns the named values
// for the query template. Dates are bound as YYYY-MM-DD strings.
func (s ExtractionSpec) Bind(c Criteria) (map[string]any, error) {
	out := make(map[string]any, len(s.Params)+1)

	for _, p := range s.Params {
		raw, present := c[p.Name]
		if !present || isBlank(raw) {
			if p.Required {
				return nil, validationf("missing required criterion %q", p.Name)
			}
			out[p.Name] = p.Default
			continue
		}

		v, err := coerce(p, raw)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}

	if err := checkDateRange(out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkDateRange enforces fromDate <= toDate and derives the exclusive
// upper bound when both are present.
func checkDateRange(values map[string]any) error {
	from, okFrom := values[ParamFromDate].(string)
	to, okTo := values[ParamToDate].(string)
	if !okFrom || !okTo {
		return nil
	}

	fromDate, _ := time.Parse(dateFormat, from)
	toDate, _ := time.Parse(dateFormat, to)
	if fromDate.After(toDate) {
		return validationf("fromDate %s is after toDate %s", from, to)
	}

	values[derivedToDateExclusive] = toDate.AddDate(0, 0, 1).Format(dateFormat)
	return nil
}

func coerce(p Param, raw any) (any, error) {
	switch p.Kind {
	case KindDate:
		s, ok := raw.(string)
		if !ok {
			return nil, validationf("criterion %q must be a date string (YYYY-MM-DD), got %T", p.Name, raw)
		}
		d, err := parseDate(s)
		if err != nil {
			return nil, validationf("criterion %q: invalid date %q, expected YYYY-MM-DD", p.Name, s)
		}
		return d.Format(dateFormat), nil

	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, validationf("criterion %q must be a string, got %T", p.Name, raw)
		}
		return strings.TrimSpace(s), nil

	case KindInt:
		n, err := toInt(raw)
		if err != nil {
			return nil, validationf("criterion %q must be an integer: %v", p.Name, err)
		}
		return n, nil
	}

	return nil, validationf("criterion %q has unsupported kind %q", p.Name, p.Kind)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dateFormat, s); err == nil {
		return d, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not a whole number", v)
		}
		if v < -(1<<63) || v >= 1<<63 {
			return 0, fmt.Errorf("%v is out of range", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func validationf(format string, args ...any) error {
	return apperror.New(apperror.Validation, fmt.Sprintf(format, args...))
}
