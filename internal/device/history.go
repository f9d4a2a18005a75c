package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kochj23/SceneFixer/internal/health"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000

	// timestampLayout has fixed-width fractions so stored values sort as text.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// HistoryRepository persists device test results.
//
// Implementations must be thread-safe and store UTC timestamps.
type HistoryRepository interface {
	// Record stores one result.
	Record(ctx context.Context, r health.TestResult) error

	// ListForDevice returns up to limit results for a device, newest first.
	ListForDevice(ctx context.Context, deviceID string, limit int) ([]health.TestResult, error)

	// LoadAll returns every stored result grouped by device, oldest first.
	LoadAll(ctx context.Context) (map[string][]health.TestResult, error)
}

// SQLiteHistoryRepository stores results in the device_test_results table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a repository on an open, migrated database.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// Record inserts a result. Re-recording the same result ID is a no-op.
func (r *SQLiteHistoryRepository) Record(ctx context.Context, res health.TestResult) error {
	if res.DeviceID == "" || res.ID == "" {
		return ErrInvalidResult
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO device_test_results
		 (id, device_id, timestamp, success, response_time_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.ID,
		res.DeviceID,
		res.Timestamp.UTC().Format(timestampLayout),
		boolToInt(res.Success),
		nullFloat(res.ResponseTime),
		nullString(res.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting test result: %w", err)
	}
	return nil
}

// ListForDevice returns recent results for a device (default 50, max 1000).
func (r *SQLiteHistoryRepository) ListForDevice(ctx context.Context, deviceID string, limit int) ([]health.TestResult, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, timestamp, success, response_time_ms, error
		 FROM device_test_results
		 WHERE device_id = ?
		 ORDER BY timestamp DESC, rowid DESC
		 LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying test results: %w", err)
	}
	defer rows.Close()

	return scanResults(rows, limit)
}

// LoadAll returns every stored result grouped by device, oldest first.
func (r *SQLiteHistoryRepository) LoadAll(ctx context.Context) (map[string][]health.TestResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, timestamp, success, response_time_ms, error
		 FROM device_test_results
		 ORDER BY device_id, timestamp, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying test results: %w", err)
	}
	defer rows.Close()

	results, err := scanResults(rows, 0)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]health.TestResult)
	for _, res := range results {
		out[res.DeviceID] = append(out[res.DeviceID], res)
	}
	return out, nil
}

// Prune deletes results older than the given age.
//
// Parameters:
//   - ctx: bounds the delete
//   - olderThan: age cutoff measured back from now; must be positive
//
// Returns:
//   - int64: number of results deleted
//   - error: for a non-positive age or a failed delete
func (r *SQLiteHistoryRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := time.Now().UTC().Add(-olderThan).Format(timestampLayout)

	res, err := r.db.ExecContext(ctx, "DELETE FROM device_test_results WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning test results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}
	return n, nil
}

func scanResults(rows *sql.Rows, capacity int) ([]health.TestResult, error) {
	results := make([]health.TestResult, 0, capacity)
	for rows.Next() {
		var (
			res       health.TestResult
			ts        string
			success   int
			response  sql.NullFloat64
			errorText sql.NullString
		)
		if err := rows.Scan(&res.ID, &res.DeviceID, &ts, &success, &response, &errorText); err != nil {
			return nil, fmt.Errorf("scanning test result: %w", err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing result timestamp %q: %w", ts, err)
		}
		res.Timestamp = parsed
		res.Success = success != 0
		if response.Valid {
			v := response.Float64
			res.ResponseTime = &v
		}
		if errorText.Valid {
			v := errorText.String
			res.Error = &v
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating test results: %w", err)
	}
	return results, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
