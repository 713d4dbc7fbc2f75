//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/readings.go -package=mocks . ReadingRepository

// Package database stores derived solar metrics in a time-series table.
//
// The table is keyed by (time, location_id) and is expected to exist
// already; schema management is left to the database owner. With
// TimescaleDB it is typically a hypertable:
//
//	CREATE TABLE power_kwh (
//	    time        TIMESTAMPTZ NOT NULL,
//	    location_id INTEGER     NOT NULL,
//	    value       DOUBLE PRECISION,
//	    UNIQUE (time, location_id)
//	);
//
// Example usage:
//
//	repo, err := NewRepo(cfg.Database, m)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
//	result, err := repo.InsertReading(ctx, reading)
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/config"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/metrics"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/models"
)

// InsertResult tells whether a row was written or already present.
type InsertResult int

const (
	InsertInserted InsertResult = iota
	InsertConflict
)

func (r InsertResult) String() string {
	switch r {
	case InsertInserted:
		return "inserted"
	case InsertConflict:
		return "conflict"
	}
	return fmt.Sprintf("InsertResult(%d)", int(r))
}

// ReadingRepository stores readings.
type ReadingRepository interface {
	// InsertReading writes the day energy of r, in kWh, at its update time.
	// A row that already exists for that time and location yields
	// InsertConflict and no error.
	InsertReading(ctx context.Context, r models.Reading) (InsertResult, error)

	// Close releases the connection.
	Close() error
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLRepo implements ReadingRepository over database/sql, with lib/pq for
// PostgreSQL/TimescaleDB and modernc sqlite for local use.
type SQLRepo struct {
	db         *sql.DB
	query      string
	locationID int
	metrics    *metrics.Metrics
}

// NewRepo opens and verifies a connection for cfg.
func NewRepo(cfg config.DatabaseConfig, m *metrics.Metrics) (*SQLRepo, error) {
	if !identifier.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}

	var placeholders string
	switch cfg.Driver {
	case config.DriverPostgres:
		placeholders = "$1, $2, $3"
	case config.DriverSQLite:
		placeholders = "?, ?, ?"
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLRepo{
		db:         db,
		query:      fmt.Sprintf("INSERT INTO %s (time, location_id, value) VALUES (%s)", cfg.Table, placeholders),
		locationID: cfg.LocationID,
		metrics:    m,
	}, nil
}

func (s *SQLRepo) InsertReading(ctx context.Context, r models.Reading) (InsertResult, error) {
	result, err := s.insert(ctx, r.LastUpdateTime.UTC(), r.LastDayEnergy/1000.0)
	if err != nil {
		s.metrics.DBInserts.WithLabelValues("error").Inc()
		return result, err
	}
	s.metrics.DBInserts.WithLabelValues(result.String()).Inc()
	return result, nil
}

func (s *SQLRepo) insert(ctx context.Context, at time.Time, value float64) (InsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return InsertInserted, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // rollback if not committed

	if _, err := tx.ExecContext(ctx, s.query, at, s.locationID, value); err != nil {
		if isUniqueViolation(err) {
			return InsertConflict, nil
		}
		return InsertInserted, fmt.Errorf("failed to insert reading: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return InsertConflict, nil
		}
		return InsertInserted, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return InsertInserted, nil
}

func (s *SQLRepo) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// Compile-time interface implementation check
var _ ReadingRepository = (*SQLRepo)(nil)
