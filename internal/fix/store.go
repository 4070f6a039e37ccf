package fix

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists confirmed fixes to SQLite so a restart can warm-start
// the estimator from the last known position instead of the default one.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS fixes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fetched_at INTEGER NOT NULL,
	timestamp REAL NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	altitude_km REAL,
	velocity_kmh REAL
);
CREATE INDEX IF NOT EXISTS idx_fixes_fetched_at ON fixes(fetched_at);
`

// OpenStore opens the fix history database, creating it if needed.
func OpenStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening fix store: %w", err)
	}
	// Single writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating fix store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append records one confirmed fix together with its local fetch time.
func (s *Store) Append(f *Fix, fetchedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO fixes (fetched_at, timestamp, latitude, longitude, altitude_km, velocity_kmh)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fetchedAt.Unix(), f.Timestamp, f.Latitude, f.Longitude,
		nullableFloat(f.AltitudeKm), nullableFloat(f.VelocityKmh),
	)
	if err != nil {
		return fmt.Errorf("recording fix: %w", err)
	}
	return nil
}

// Latest returns the most recent fix and its fetch time. An empty store
// returns a nil fix and no error.
func (s *Store) Latest() (*Fix, time.Time, error) {
	row := s.db.QueryRow(
		`SELECT fetched_at, timestamp, latitude, longitude, altitude_km, velocity_kmh
		 FROM fixes ORDER BY id DESC LIMIT 1`)

	var fetched int64
	var f Fix
	var alt, vel sql.NullFloat64
	err := row.Scan(&fetched, &f.Timestamp, &f.Latitude, &f.Longitude, &alt, &vel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading last fix: %w", err)
	}
	if alt.Valid {
		v := alt.Float64
		f.AltitudeKm = &v
	}
	if vel.Valid {
		v := vel.Float64
		f.VelocityKmh = &v
	}
	return &f, time.Unix(fetched, 0), nil
}

// nullableFloat maps an optional field onto a NULL-able column value.
func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// Prune drops fixes fetched before the cutoff.
func (s *Store) Prune(before time.Time) error {
	_, err := s.db.Exec(`DELETE FROM fixes WHERE fetched_at < ?`, before.Unix())
	if err != nil {
		return fmt.Errorf("pruning fix store: %w", err)
	}
	return nil
}

// Count returns the number of stored fixes.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM fixes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting fixes: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
