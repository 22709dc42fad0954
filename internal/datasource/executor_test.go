package datasource

import (
	"context"
	"database/sql"
	"encoding/base64"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/mining-reports/internal/apperror"
	"github.com/ahmethakanbesel/mining-reports/internal/artifact"
	"github.com/ahmethakanbesel/mining-reports/internal/config"
	"github.com/ahmethakanbesel/mining-reports/internal/report"
	"github.com/ahmethakanbesel/mining-reports/internal/testutil"
)

func setupExecutor(t *testing.T) *Executor {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register("prod", DriverSQLite, testutil.OpenOperational(t)))
	return NewExecutor(reg, 0)
}

func run(t *testing.T, ex *Executor, typ report.Type, c report.Criteria) *Result {
	t.Helper()
	spec, err := report.Default().Resolve(typ)
	require.NoError(t, err)
	params, err := spec.Bind(c)
	require.NoError(t, err)
	res, err := ex.Execute(context.Background(), "prod", spec.Query, params)
	require.NoError(t, err)
	return res
}

var january = report.Criteria{"fromDate": "2024-01-01", "toDate": "2024-01-31"}

func TestExecute_AllDefinitionsRunOnSQLite(t *testing.T) {
	ex := setupExecutor(t)
	for _, spec := range report.Default().Specs() {
		t.Run(string(spec.Type), func(t *testing.T) {
			res := run(t, ex, spec.Type, january)
			assert.Equal(t, spec.Columns, res.Columns)
		})
	}
}

func TestExecute_MaterialLoading(t *testing.T) {
	ex := setupExecutor(t)

	res := run(t, ex, report.MaterialLoading, january)
	require.Len(t, res.Rows, 3)

	first := res.Rows[0]
	assert.Equal(t, "2024-01-05", first["shiftDate"])
	assert.Equal(t, "DAY", first["shiftCode"])
	assert.Equal(t, "TR-01", first["truckCode"])
	assert.Equal(t, int64(2), first["loadCount"])
	assert.Equal(t, int64(8), first["bucketCount"])
	assert.InDelta(t, 210.0, first["tonnage"], 0.001)

	// The load at 2024-02-01T06:30 falls outside the inclusive toDate.
	last := res.Rows[2]
	assert.Equal(t, "2024-01-31", last["shiftDate"])
	assert.InDelta(t, 90.0, last["tonnage"], 0.001)
}

func TestExecute_OptionalFilter(t *testing.T) {
	ex := setupExecutor(t)

	res := run(t, ex, report.MaterialLoading, report.Criteria{
		"fromDate": "2024-01-01", "toDate": "2024-01-31", "materialCode": "WASTE",
	})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "WASTE", res.Rows[0]["materialCode"])
}

func TestExecute_EquipmentUtilization(t *testing.T) {
	ex := setupExecutor(t)

	res := run(t, ex, report.EquipmentUtilization, january)
	require.Len(t, res.Rows, 4)

	byCode := make(map[string]Row)
	for _, r := range res.Rows {
		byCode[r["equipmentCode"].(string)] = r
	}

	ex01 := byCode["EX-01"]
	assert.InDelta(t, 1.0, ex01["utilization"], 0.001)
	assert.InDelta(t, 10.0/12.0, ex01["availability"], 0.001)

	tr01 := byCode["TR-01"]
	assert.InDelta(t, 0.75, tr01["utilization"], 0.001)
	assert.InDelta(t, 1.0, tr01["availability"], 0.001)

	assert.Nil(t, byCode["TR-02"]["utilization"])
	assert.Nil(t, byCode["DZ-01"]["availability"])
}

func TestExecute_EmptyResult(t *testing.T) {
	ex := setupExecutor(t)

	res := run(t, ex, report.MaterialLoading, report.Criteria{"fromDate": "2023-01-01", "toDate": "2023-01-31"})
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
	assert.NotEmpty(t, res.Columns)
}

func TestExecute_Errors(t *testing.T) {
	ex := setupExecutor(t)
	ctx := context.Background()

	_, err := ex.Execute(ctx, "archive", "SELECT 1", nil)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.Query))
	assert.Contains(t, err.Error(), `unknown data source "archive"`)

	_, err = ex.Execute(ctx, "prod", "SELECT * FROM no_such_table", nil)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.Query))
	assert.Contains(t, err.Error(), "query on prod failed")
	assert.Contains(t, err.Error(), "no_such_table")

	_, err = ex.Execute(ctx, "prod", "SELECT @missing", map[string]any{})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.Query))
}

func TestExecute_PlaceholdersAfterComment(t *testing.T) {
	ex := setupExecutor(t)

	res, err := ex.Execute(context.Background(), "prod", `
SELECT @code AS code -- the operator's equipment code
     , @cycles AS cycles
     , @unset AS unset`, map[string]any{"code": "EX-01", "cycles": int64(3), "unset": nil, "extra": "ignored"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "EX-01", res.Rows[0]["code"])
	assert.Equal(t, int64(3), res.Rows[0]["cycles"])
	assert.Nil(t, res.Rows[0]["unset"])
}

func TestExecute_BinaryColumnSurvivesArtifact(t *testing.T) {
	ex := setupExecutor(t)
	ctx := context.Background()

	res, err := ex.Execute(ctx, "prod", `SELECT x'ff00fe' AS "b", CAST('plain' AS BLOB) AS "t"`, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []byte{0xff, 0x00, 0xfe}, res.Rows[0]["b"])
	assert.Equal(t, "plain", res.Rows[0]["t"])

	b, err := artifact.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	store := artifact.NewStore(b)
	ref, err := store.Write(ctx, 1, res.Columns, res.Rows)
	require.NoError(t, err)

	a, err := store.Read(ctx, ref)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(a.Rows[0]["b"].(string))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0x00, 0xfe}, decoded)
	assert.Equal(t, "plain", a.Rows[0]["t"])
}

func TestNamedArgs(t *testing.T) {
	params := map[string]any{"fromDate": "2024-01-01", "minCycles": int64(2)}

	pg := pool{driver: DriverPgx}.namedArgs(params)
	require.Len(t, pg, 1)
	assert.Equal(t, pgx.NamedArgs(params), pg[0])

	lite := pool{driver: DriverSQLite}.namedArgs(params)
	assert.ElementsMatch(t, []any{
		sql.Named("fromDate", "2024-01-01"),
		sql.Named("minCycles", int64(2)),
	}, lite)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	db := testutil.OpenOperational(t)

	require.NoError(t, reg.Register("prod", DriverSQLite, db))
	assert.Error(t, reg.Register("prod", DriverSQLite, db))
	assert.Error(t, reg.Register("other", "mysql", db))
	assert.True(t, reg.Has("prod"))
	assert.False(t, reg.Has("other"))
	assert.Equal(t, []string{"prod"}, reg.Names())
}

func TestOpen_SQLiteSource(t *testing.T) {
	reg, err := Open(context.Background(), []config.DataSource{
		{Name: "scratch", Driver: DriverSQLite, DSN: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	assert.Equal(t, []string{"scratch"}, reg.Names())

	_, err = Open(context.Background(), []config.DataSource{{Name: "x", Driver: "oracle", DSN: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}
