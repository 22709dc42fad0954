// Package testutil provides a seeded operational database for tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/ahmethakanbesel/mining-reports/internal/platform/sqlite"
)

const operationalSchema = `
CREATE TABLE equipment (
    id INTEGER PRIMARY KEY, code TEXT NOT NULL, name TEXT NOT NULL,
    equipment_type TEXT NOT NULL, fleet TEXT
);
CREATE TABLE materials (
    id INTEGER PRIMARY KEY, code TEXT NOT NULL, name TEXT NOT NULL, density REAL NOT NULL
);
CREATE TABLE loads (
    id INTEGER PRIMARY KEY, loaded_at TEXT NOT NULL, shift_date TEXT NOT NULL, shift_code TEXT NOT NULL,
    loader_id INTEGER NOT NULL, truck_id INTEGER NOT NULL, material_id INTEGER NOT NULL,
    source_location TEXT, destination TEXT, bucket_count INTEGER NOT NULL, tonnage REAL NOT NULL
);
CREATE TABLE haul_cycles (
    id INTEGER PRIMARY KEY, started_at TEXT NOT NULL, shift_date TEXT NOT NULL, shift_code TEXT NOT NULL,
    truck_id INTEGER NOT NULL, loader_id INTEGER NOT NULL, material_id INTEGER NOT NULL,
    queue_min REAL, load_min REAL, haul_min REAL, dump_min REAL, return_min REAL, distance_km REAL
);
CREATE TABLE fuel_logs (
    id INTEGER PRIMARY KEY, filled_at TEXT NOT NULL, shift_date TEXT NOT NULL, shift_code TEXT NOT NULL,
    equipment_id INTEGER NOT NULL, litres REAL NOT NULL, hour_meter REAL NOT NULL
);
CREATE TABLE equipment_events (
    id INTEGER PRIMARY KEY, equipment_id INTEGER NOT NULL, event_type TEXT NOT NULL, reason TEXT,
    started_at TEXT NOT NULL, shift_date TEXT NOT NULL, duration_hours REAL NOT NULL
);

INSERT INTO equipment VALUES
    (1, 'EX-01', 'Excavator 01', 'EXCAVATOR', 'LOADING'),
    (2, 'TR-01', 'Haul truck 01', 'TRUCK', 'HAULAGE'),
    (3, 'TR-02', 'Haul truck 02', 'TRUCK', 'HAULAGE'),
    (4, 'DZ-01', 'Dozer 01', 'DOZER', 'SUPPORT');

INSERT INTO materials VALUES
    (1, 'ORE', 'Iron ore', 2.5),
    (2, 'WASTE', 'Overburden', 2.0);

INSERT INTO loads VALUES
    (1, '2024-01-05T07:10:00', '2024-01-05', 'DAY',   1, 2, 1, 'PIT-1', 'CRUSHER', 4, 100.0),
    (2, '2024-01-05T08:40:00', '2024-01-05', 'DAY',   1, 2, 1, 'PIT-1', 'CRUSHER', 4, 110.0),
    (3, '2024-01-05T21:15:00', '2024-01-05', 'NIGHT', 1, 3, 2, 'PIT-1', 'DUMP-A',  5, 120.0),
    (4, '2024-01-31T23:50:00', '2024-01-31', 'NIGHT', 1, 3, 1, 'PIT-2', 'CRUSHER', 4, 90.0),
    (5, '2024-02-01T06:30:00', '2024-01-31', 'NIGHT', 1, 2, 1, 'PIT-2', 'CRUSHER', 4, 95.0);

INSERT INTO haul_cycles VALUES
    (1, '2024-01-05T07:00:00', '2024-01-05', 'DAY',   2, 1, 1, 2, 3, 12, 1, 10, 4.0),
    (2, '2024-01-05T08:30:00', '2024-01-05', 'DAY',   2, 1, 1, 4, 3, 14, 1, 12, 4.0),
    (3, '2024-01-05T21:00:00', '2024-01-05', 'NIGHT', 3, 1, 2, 1, 4, 8,  2, 7,  2.5);

INSERT INTO fuel_logs VALUES
    (1, '2024-01-04T06:00:00', '2024-01-04', 'DAY', 2, 400.0, 1000.0),
    (2, '2024-01-06T06:00:00', '2024-01-06', 'DAY', 2, 380.0, 1020.0),
    (3, '2024-01-06T06:30:00', '2024-01-06', 'DAY', 1, 900.0, 5000.0);

INSERT INTO equipment_events VALUES
    (1, 1, 'OPERATING',   NULL,        '2024-01-05T06:00:00', '2024-01-05', 10.0),
    (2, 1, 'BREAKDOWN',   'HYDRAULIC', '2024-01-05T16:00:00', '2024-01-05', 2.0),
    (3, 2, 'OPERATING',   NULL,        '2024-01-05T06:00:00', '2024-01-05', 9.0),
    (4, 2, 'STANDBY',     'NO_OPERATOR', '2024-01-05T15:00:00', '2024-01-05', 3.0),
    (5, 3, 'MAINTENANCE', 'SERVICE',   '2024-01-10T06:00:00', '2024-01-10', 6.0);
`

// OpenOperational returns an in-memory SQLite database holding a small mine
// operations dataset for January 2024. It is closed when the test ends.
func OpenOperational(t testing.TB) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := sqlite.OpenRaw(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open operational db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, operationalSchema); err != nil {
		t.Fatalf("seed operational db: %v", err)
	}
	return db
}
