// Package store keeps scan results in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mcphysics/drumscan"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Run kinds.
const (
	KindAngle     = "angle"
	KindSquare    = "square"
	KindM2K       = "m2k"
	KindSoundcard = "soundcard"
	KindSweep     = "sweep"
)

var ErrNotFound = errors.New("run not found")

// Run describes one stored measurement.
type Run struct {
	ID        string         `json:"run_id"`
	Kind      string         `json:"kind"`
	StartedAt time.Time      `json:"started_at"`
	Params    map[string]any `json:"params,omitempty"`
	Notes     string         `json:"notes,omitempty"`
}

// Store wraps the results database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies any pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// MigrateUp runs all pending migrations up to the latest version.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared database handle.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (s *Store) Version() (uint, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	return v, nil
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func (s *Store) Close() error { return s.db.Close() }

// insertRun fills in a missing id and start time and writes the run row.
func insertRun(ctx context.Context, tx *sql.Tx, run *Run, kind string) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Kind = kind
	params := []byte("{}")
	if len(run.Params) > 0 {
		var err error
		if params, err = json.Marshal(run.Params); err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, kind, started_at, params, notes) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.StartedAt.UnixNano(), string(params), nullString(run.Notes),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, f func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if err = f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveSweep stores an angle scan. If run.ID is empty a new UUID is
// generated; the id is written back to run.
func (s *Store) SaveSweep(ctx context.Context, run *Run, res *drumscan.SweepResult) error {
	if len(res.Angles) != len(res.Values) {
		return fmt.Errorf("sweep has %d angles but %d values", len(res.Angles), len(res.Values))
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run, KindAngle); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO sweep_points (run_id, idx, angle, value) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i := range res.Angles {
			if _, err := stmt.ExecContext(ctx, run.ID, i, res.Angles[i], res.Values[i]); err != nil {
				return fmt.Errorf("insert sweep point %d: %w", i, err)
			}
		}
		return nil
	})
}

// SaveGrid stores a grid scan in visiting order.
func (s *Store) SaveGrid(ctx context.Context, run *Run, res *drumscan.GridScanResult) error {
	if len(res.Commanded) != len(res.X) || len(res.X) != len(res.Y) {
		return fmt.Errorf("grid has %d commands for %d×%d positions", len(res.Commanded), len(res.X), len(res.Y))
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run, KindSquare); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO grid_points (run_id, idx, cmd_r, cmd_a, x, y) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, c := range res.Commanded {
			if _, err := stmt.ExecContext(ctx, run.ID, i, c.R, c.A, res.X[i], res.Y[i]); err != nil {
				return fmt.Errorf("insert grid point %d: %w", i, err)
			}
		}
		return nil
	})
}

// SaveDataBox stores a single-shot acquisition or sweep under the given
// kind.
func (s *Store) SaveDataBox(ctx context.Context, run *Run, kind string, d *drumscan.DataBox) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run, kind); err != nil {
			return err
		}
		for i, name := range d.Columns() {
			c, err := d.Column(name)
			if err != nil {
				return err
			}
			b, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("encode column %q: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO databox_columns (run_id, position, name, data) VALUES (?, ?, ?, ?)`,
				run.ID, i, name, string(b),
			); err != nil {
				return fmt.Errorf("insert column %q: %w", name, err)
			}
		}
		for _, k := range d.Headers() {
			v, _ := d.Header(k)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO databox_headers (run_id, key, value) VALUES (?, ?, ?)`,
				run.ID, k, v,
			); err != nil {
				return fmt.Errorf("insert header %q: %w", k, err)
			}
		}
		return nil
	})
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, kind, started_at, params, notes FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, kind, started_at, params, notes FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r       Run
		started int64
		params  string
		notes   sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.Kind, &started, &params, &notes); err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started)
	r.Notes = notes.String
	if params != "" && params != "{}" {
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			return nil, fmt.Errorf("decode params of run %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

// Sweep loads the points of an angle scan.
func (s *Store) Sweep(ctx context.Context, id string) (*drumscan.SweepResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT angle, value FROM sweep_points WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("query sweep %s: %w", id, err)
	}
	defer rows.Close()

	res := &drumscan.SweepResult{Angles: []float64{}, Values: []float64{}}
	for rows.Next() {
		var a, v float64
		if err := rows.Scan(&a, &v); err != nil {
			return nil, err
		}
		res.Angles = append(res.Angles, a)
		res.Values = append(res.Values, v)
	}
	return res, rows.Err()
}

// Grid loads the points of a grid scan in visiting order.
func (s *Store) Grid(ctx context.Context, id string) (*drumscan.GridScanResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cmd_r, cmd_a, x, y FROM grid_points WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("query grid %s: %w", id, err)
	}
	defer rows.Close()

	res := &drumscan.GridScanResult{X: []float64{}, Y: []float64{}, Commanded: []drumscan.ScanPoint{}}
	for rows.Next() {
		var p drumscan.ScanPoint
		var x, y float64
		if err := rows.Scan(&p.R, &p.A, &x, &y); err != nil {
			return nil, err
		}
		res.Commanded = append(res.Commanded, p)
		res.X = append(res.X, x)
		res.Y = append(res.Y, y)
	}
	return res, rows.Err()
}

// DataBox loads a stored acquisition.
func (s *Store) DataBox(ctx context.Context, id string) (*drumscan.DataBox, error) {
	d := drumscan.NewDataBox()
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, data FROM databox_columns WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, err
		}
		var c []float64
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, fmt.Errorf("decode column %q: %w", name, err)
		}
		d.SetColumn(name, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hrows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM databox_headers WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query headers of %s: %w", id, err)
	}
	defer hrows.Close()
	for hrows.Next() {
		var k, v string
		if err := hrows.Scan(&k, &v); err != nil {
			return nil, err
		}
		d.SetHeader(k, v)
	}
	return d, hrows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
