package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/leebs0521/wayline-core/internal/types"
	"github.com/leebs0521/wayline-core/internal/wayline"
)

// TaskDAO persists flight tasks. It implements wayline.TaskStore.
type TaskDAO struct {
	db *DB
}

var _ wayline.TaskStore = (*TaskDAO)(nil)

// NewTaskDAO creates a task DAO over the database.
func NewTaskDAO(db *DB) *TaskDAO {
	return &TaskDAO{db: db}
}

const taskColumns = `flight_id, device_sn, file_url, file_fingerprint,
	config_json, status, step, percent, breakpoint_json, reason,
	created_at, updated_at, started_at, completed_at`

// Save inserts or replaces the persisted task.
func (d *TaskDAO) Save(ctx context.Context, task *wayline.FlightTask) error {
	configJSON, err := marshalNullable(task.Config)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "encoding task config", err)
	}
	breakpointJSON, err := marshalNullable(task.Breakpoint)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "encoding breakpoint", err)
	}

	_, err = d.db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO flight_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.FlightID.String(),
		task.DeviceSN,
		task.File.URL,
		task.File.Fingerprint,
		configJSON,
		string(task.Status),
		int(task.Step),
		task.Percent,
		breakpointJSON,
		task.Reason,
		task.CreatedAt,
		task.UpdatedAt,
		task.StartedAt,
		task.CompletedAt,
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "saving flight task", err)
	}
	return nil
}

// Get retrieves a task by flight id, live or historical.
func (d *TaskDAO) Get(ctx context.Context, flightID types.FlightID) (*wayline.FlightTask, error) {
	row := d.db.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM flight_tasks WHERE flight_id = ?`,
		flightID.String())

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wayline.NewNotFoundError(flightID)
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "loading flight task", err)
	}
	return task, nil
}

// ListLive returns all non-terminal tasks for restart recovery.
func (d *TaskDAO) ListLive(ctx context.Context) ([]*wayline.FlightTask, error) {
	rows, err := d.db.conn.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM flight_tasks
		WHERE status IN (?, ?, ?)
		ORDER BY created_at`,
		string(wayline.TaskStatusSent),
		string(wayline.TaskStatusInProgress),
		string(wayline.TaskStatusPaused),
	)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "listing live tasks", err)
	}
	defer rows.Close()

	var tasks []*wayline.FlightTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "scanning flight task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "iterating live tasks", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*wayline.FlightTask, error) {
	var (
		task           wayline.FlightTask
		flightID       string
		status         string
		step           int
		configJSON     sql.NullString
		breakpointJSON sql.NullString
	)

	err := row.Scan(
		&flightID,
		&task.DeviceSN,
		&task.File.URL,
		&task.File.Fingerprint,
		&configJSON,
		&status,
		&step,
		&task.Percent,
		&breakpointJSON,
		&task.Reason,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.StartedAt,
		&task.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	task.FlightID = types.FlightID(flightID)
	task.Status = wayline.TaskStatus(status)
	task.Step = wayline.ExecutionStep(step)

	if configJSON.Valid && configJSON.String != "" {
		var cfg wayline.TaskConfig
		if err := json.Unmarshal([]byte(configJSON.String), &cfg); err != nil {
			return nil, err
		}
		task.Config = &cfg
	}
	if breakpointJSON.Valid && breakpointJSON.String != "" {
		var bp wayline.Breakpoint
		if err := json.Unmarshal([]byte(breakpointJSON.String), &bp); err != nil {
			return nil, err
		}
		task.Breakpoint = &bp
	}
	return &task, nil
}

// marshalNullable encodes v as JSON, returning nil (SQL NULL) for a
// nil pointer.
func marshalNullable(v any) (any, error) {
	switch x := v.(type) {
	case *wayline.TaskConfig:
		if x == nil {
			return nil, nil
		}
	case *wayline.Breakpoint:
		if x == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
