package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/ZanzyTHEbar/motion-classifier/internal/resilience"
	"github.com/ZanzyTHEbar/motion-classifier/internal/types"
)

// ErrNotFound is returned when a lookup matches no rows
var ErrNotFound = errors.New("record not found")

// MaxPredictionPage caps RecentPredictions
const MaxPredictionPage = 100

// Repository handles database operations
type Repository struct {
	db    *DB
	retry resilience.RetryConfig
}

// NewRepository creates a new repository. Writes that hit a locked
// database are retried with backoff.
func NewRepository(db *DB) *Repository {
	retry := resilience.DefaultRetryConfig()
	retry.Retryable = IsBusy
	return &Repository{db: db, retry: retry}
}

// IsBusy reports whether err is SQLite lock contention
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// InsertReadings stores a batch of readings in one transaction. Readings that
// fail validation or insertion are counted and skipped; err is reserved for
// failures that abort the whole batch.
func (r *Repository) InsertReadings(ctx context.Context, readings []types.SensorReading) (successful, failed int, err error) {
	err = resilience.RetryWithConfig(ctx, r.retry, func() error {
		var txErr error
		successful, failed, txErr = r.insertReadings(ctx, readings)
		return txErr
	})
	return successful, failed, err
}

func (r *Repository) insertReadings(ctx context.Context, readings []types.SensorReading) (successful, failed int, err error) {
	stmt, err := r.db.GetPreparedStatement(stmtInsertReading)
	if err != nil {
		return 0, 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txStmt := tx.StmtContext(ctx, stmt)
	defer txStmt.Close()

	now := time.Now().UTC()
	for _, reading := range readings {
		if !validReading(reading) {
			failed++
			continue
		}
		recordedAt := reading.Timestamp.UTC()
		if reading.Timestamp.IsZero() {
			recordedAt = now
		}
		if _, err := txStmt.ExecContext(ctx,
			reading.AcX, reading.AcY, reading.AcZ,
			reading.GyX, reading.GyY, reading.GyZ,
			reading.BPM, recordedAt,
		); err != nil {
			failed++
			continue
		}
		successful++
	}

	if err := tx.Commit(); err != nil {
		return 0, len(readings), fmt.Errorf("failed to commit readings: %w", err)
	}

	return successful, failed, nil
}

func validReading(r types.SensorReading) bool {
	for _, v := range []float64{r.AcX, r.AcY, r.AcZ, r.GyX, r.GyY, r.GyZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.BPM >= 0
}

// LatestReading returns the most recently recorded reading
func (r *Repository) LatestReading(ctx context.Context) (*types.SensorReading, error) {
	readings, err := r.latestReadings(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, ErrNotFound
	}
	return &readings[0], nil
}

// RecentReadings returns up to n of the latest readings, oldest first
func (r *Repository) RecentReadings(ctx context.Context, n int) ([]types.SensorReading, error) {
	readings, err := r.latestReadings(ctx, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
	return readings, nil
}

// latestReadings returns up to n readings, newest first
func (r *Repository) latestReadings(ctx context.Context, n int) ([]types.SensorReading, error) {
	if n <= 0 {
		return nil, nil
	}

	stmt, err := r.db.GetPreparedStatement(stmtLatestReadings)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := make([]types.SensorReading, 0, n)
	for rows.Next() {
		var reading types.SensorReading
		if err := rows.Scan(
			&reading.ID, &reading.AcX, &reading.AcY, &reading.AcZ,
			&reading.GyX, &reading.GyY, &reading.GyZ,
			&reading.BPM, &reading.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}

// RecordPrediction persists a scoring decision
func (r *Repository) RecordPrediction(ctx context.Context, p *Prediction) error {
	stmt, err := r.db.GetPreparedStatement(stmtInsertPrediction)
	if err != nil {
		return err
	}

	err = resilience.RetryWithConfig(ctx, r.retry, func() error {
		_, execErr := stmt.ExecContext(ctx,
			p.ID, p.Label, p.Probability, p.WindowSize, p.ModelVersion, p.Source, p.CreatedAt,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to record prediction: %w", err)
	}

	return nil
}

// RecentPredictions returns up to limit predictions, newest first. limit is
// clamped to [1, MaxPredictionPage].
func (r *Repository) RecentPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	if limit <= 0 {
		limit = 1
	}
	if limit > MaxPredictionPage {
		limit = MaxPredictionPage
	}

	stmt, err := r.db.GetPreparedStatement(stmtRecentPredictions)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	predictions := make([]Prediction, 0, limit)
	for rows.Next() {
		var p Prediction
		if err := rows.Scan(
			&p.ID, &p.Label, &p.Probability, &p.WindowSize,
			&p.ModelVersion, &p.Source, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}

	return predictions, nil
}

// Counts returns the number of stored readings and predictions
func (r *Repository) Counts(ctx context.Context) (readings, predictions int64, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM sensor_readings), (SELECT COUNT(*) FROM predictions)
	`).Scan(&readings, &predictions)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return readings, predictions, nil
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
