// Package store persists detection runs in a sqlite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/swdee/go-maskflow"
	"github.com/swdee/go-maskflow/lgr"
)

//go:embed migrations/*.sql
var migrations embed.FS

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// ErrNoRun is returned when a run id is not in the database
var ErrNoRun = errors.New("run not found")

// RunInfo describes a detection run
type RunInfo struct {
	ID       string
	Sequence string
	Model    string
	Frames   int
	Tracked  bool
	Created  time.Time
}

// Store is a sqlite database of runs and their detections
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and migrates it to the latest
// schema
func Open(path string) (*Store, error) {

	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("error applying %q: %w", p, err)
		}
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {

	src, err := iofs.New(migrations, "migrations")

	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})

	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)

	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = migrateLogger{}

	// m is not closed as that would close db
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores info and every row of table in one transaction and returns
// the new run id
func (s *Store) SaveRun(ctx context.Context, info RunInfo, table *maskflow.DetectionTable) (string, error) {

	id := uuid.NewString()

	if info.Created.IsZero() {
		info.Created = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)

	if err != nil {
		return "", err
	}

	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, sequence, model, frames, tracked, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, info.Sequence, info.Model, info.Frames, table.HasObjectIDs(), info.Created,
	); err != nil {
		return "", fmt.Errorf("error inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO detections (run_id, id, frame, class_id, class_label, score, x, y, width, height, object_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	if err != nil {
		return "", err
	}

	defer stmt.Close()

	for _, d := range table.Rows() {

		objectID := d.ObjectID

		if !table.HasObjectIDs() {
			objectID = maskflow.Unassigned
		}

		if _, err := stmt.ExecContext(ctx, id, d.ID, d.Frame, d.ClassID, d.ClassLabel,
			float64(d.Score), d.X, d.Y, d.Width, d.Height, objectID); err != nil {
			return "", fmt.Errorf("error inserting detection %d: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	lgr.Logger.Info("run saved",
		slog.String("run", id),
		slog.Int("detections", table.Len()),
	)

	return id, nil
}

// Run returns the run with id
func (s *Store) Run(ctx context.Context, id string) (RunInfo, error) {

	var r RunInfo

	err := s.db.QueryRowContext(ctx,
		`SELECT id, sequence, model, frames, tracked, created_at FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Sequence, &r.Model, &r.Frames, &r.Tracked, &r.Created)

	if errors.Is(err, sql.ErrNoRows) {
		return RunInfo{}, fmt.Errorf("%w: %s", ErrNoRun, id)
	}

	return r, err
}

// Runs returns every stored run, newest first
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sequence, model, frames, tracked, created_at FROM runs ORDER BY created_at DESC, id`)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var out []RunInfo

	for rows.Next() {
		var r RunInfo

		if err := rows.Scan(&r.ID, &r.Sequence, &r.Model, &r.Frames, &r.Tracked, &r.Created); err != nil {
			return nil, err
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

// Detections returns the detection table stored for run id
func (s *Store) Detections(ctx context.Context, runID string) (*maskflow.DetectionTable, error) {

	info, err := s.Run(ctx, runID)

	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, frame, class_id, class_label, score, x, y, width, height, object_id
		 FROM detections WHERE run_id = ? ORDER BY id`, runID)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var dets []maskflow.Detection

	for rows.Next() {
		var (
			d     maskflow.Detection
			score float64
		)

		if err := rows.Scan(&d.ID, &d.Frame, &d.ClassID, &d.ClassLabel, &score,
			&d.X, &d.Y, &d.Width, &d.Height, &d.ObjectID); err != nil {
			return nil, err
		}

		d.Score = float32(score)
		dets = append(dets, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	table, err := maskflow.NewDetectionTable(dets)

	if err != nil {
		return nil, err
	}

	if info.Tracked {
		for _, d := range dets {
			if err := table.SetObjectID(d.ID, d.ObjectID); err != nil {
				return nil, err
			}
		}
	}

	return table, nil
}

// migrateLogger routes migration messages to the debug log
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	lgr.Logger.Debug(fmt.Sprintf("migrate: "+format, v...))
}

func (migrateLogger) Verbose() bool {
	return false
}
