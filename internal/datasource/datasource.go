// Package datasource executes parameterized extraction queries against the
// named operational databases.
package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver

	"github.com/ahmethakanbesel/mining-reports/internal/config"
	"github.com/ahmethakanbesel/mining-reports/internal/platform/sqlite"
)

const (
	DriverPgx    = "pgx"
	DriverSQLite = sqlite.DriverName
)

type pool struct {
	db     *sql.DB
	driver string
}

// namedArgs passes params in the form the pool's driver binds @name
// placeholders from: pgx.NamedArgs for pgx, sql.Named values for SQLite.
func (p pool) namedArgs(params map[string]any) []any {
	if p.driver == DriverPgx {
		return []any{pgx.NamedArgs(params)}
	}
	args := make([]any, 0, len(params))
	for name, v := range params {
		args = append(args, sql.Named(name, v))
	}
	return args
}

// Registry holds one connection pool per named data source.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]pool
}

func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]pool)}
}

// Open connects every configured data source. On failure the pools opened so
// far are closed.
func Open(ctx context.Context, sources []config.DataSource) (*Registry, error) {
	r := NewRegistry()
	for _, src := range sources {
		db, err := openDB(ctx, src)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("datasource %s: %w", src.Name, err)
		}
		if err := r.Register(src.Name, src.Driver, db); err != nil {
			_ = db.Close()
			_ = r.Close()
			return nil, err
		}
		slog.Info("datasource connected", "name", src.Name, "driver", src.Driver)
	}
	return r, nil
}

func openDB(ctx context.Context, src config.DataSource) (*sql.DB, error) {
	switch src.Driver {
	case DriverSQLite:
		return sqlite.OpenRaw(ctx, src.DSN)
	case DriverPgx:
		db, err := sql.Open(DriverPgx, src.DSN)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", src.Driver)
	}
}

// Register adds an already opened database under name. The driver decides
// how query parameters are passed.
func (r *Registry) Register(name, driver string, db *sql.DB) error {
	switch driver {
	case DriverSQLite, DriverPgx:
	default:
		return fmt.Errorf("datasource %s: unsupported driver %q", name, driver)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.pools[name]; dup {
		return fmt.Errorf("datasource %s: already registered", name)
	}
	r.pools[name] = pool{db: db, driver: driver}
	return nil
}

// Has reports whether name is a known data source.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pools[name]
	return ok
}

// Names returns the registered data source names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pools))
	for n := range r.pools {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, p := range r.pools {
		if err := p.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	r.pools = make(map[string]pool)
	return errors.Join(errs...)
}

func (r *Registry) lookup(name string) (pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[name]
	return p, ok
}
