// Package audit stores the repair log: an append-only record of every
// RepairAction the repair orchestrator takes.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kochj23/SceneFixer/internal/health"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Filter controls which repair actions to return.
type Filter struct {
	SceneID string            // optional
	Kind    health.RepairKind // optional
	Limit   int               // default 50, max 200
	Offset  int
}

// ListResult contains a page of repair actions, newest first.
type ListResult struct {
	Actions []health.RepairAction `json:"actions"`
	Total   int                   `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// Repository defines the repair log operations.
type Repository interface {
	Create(ctx context.Context, action *health.RepairAction) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the repair log in the repair_actions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repair log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a repair action. ID and Timestamp are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, action *health.RepairAction) error {
	prepare(action)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO repair_actions
		 (id, scene_id, scene_name, kind, device_name, count, timestamp, success, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		action.ID, action.SceneID, action.SceneName, string(action.Kind),
		nullableString(action.DeviceName), action.Count,
		action.Timestamp.UTC().Format(timestampLayout),
		boolToInt(action.Success),
		nullableString(action.Message),
	)
	if err != nil {
		return fmt.Errorf("inserting repair action: %w", err)
	}
	return nil
}

// List returns repair actions matching the filter, most recent first.
//
// Parameters:
//   - ctx: bounds the query
//   - filter: optional scene and kind; Limit is clamped to the default
//     and maximum page sizes, a negative Offset is treated as zero
//
// Returns:
//   - *ListResult: the page plus the total matching count
//   - error: if the query fails
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter = clamp(filter)

	var conditions []string
	var args []any
	if filter.SceneID != "" {
		conditions = append(conditions, "scene_id = ?")
		args = append(args, filter.SceneID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM repair_actions %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting repair actions: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, scene_id, scene_name, kind, device_name, count, timestamp, success, message
		 FROM repair_actions %s ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying repair actions: %w", err)
	}
	defer rows.Close()

	actions := []health.RepairAction{}
	for rows.Next() {
		var (
			a          health.RepairAction
			kind, ts   string
			success    int
			deviceName sql.NullString
			message    sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.SceneID, &a.SceneName, &kind, &deviceName,
			&a.Count, &ts, &success, &message); err != nil {
			return nil, fmt.Errorf("scanning repair action: %w", err)
		}

		a.Kind = health.RepairKind(kind)
		a.Success = success != 0
		if deviceName.Valid {
			v := deviceName.String
			a.DeviceName = &v
		}
		if message.Valid {
			v := message.String
			a.Message = &v
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing repair action timestamp %q: %w", ts, err)
		}
		a.Timestamp = t

		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating repair actions: %w", err)
	}

	return &ListResult{
		Actions: actions,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func prepare(action *health.RepairAction) {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now().UTC()
	}
}

func clamp(filter Filter) Filter {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}

// nullableString maps nil to SQL NULL.
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
