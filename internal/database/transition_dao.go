package database

import (
	"context"

	"github.com/leebs0521/wayline-core/internal/types"
	"github.com/leebs0521/wayline-core/internal/wayline"
)

// TransitionDAO is the durable append-only transition log. It
// implements wayline.TransitionLog.
type TransitionDAO struct {
	db *DB
}

var _ wayline.TransitionLog = (*TransitionDAO)(nil)

// NewTransitionDAO creates a transition DAO over the database.
func NewTransitionDAO(db *DB) *TransitionDAO {
	return &TransitionDAO{db: db}
}

// Append persists one transition record.
func (d *TransitionDAO) Append(ctx context.Context, rec wayline.TransitionRecord) error {
	_, err := d.db.conn.ExecContext(ctx, `
		INSERT INTO task_transitions
			(id, flight_id, device_sn, from_status, to_status, step, reason, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(),
		rec.FlightID.String(),
		rec.DeviceSN,
		string(rec.From),
		string(rec.To),
		int(rec.Step),
		rec.Reason,
		rec.At,
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "appending transition", err)
	}
	return nil
}

// History returns all transitions for a task in append order.
func (d *TransitionDAO) History(ctx context.Context, flightID types.FlightID) ([]wayline.TransitionRecord, error) {
	rows, err := d.db.conn.QueryContext(ctx, `
		SELECT id, flight_id, device_sn, from_status, to_status, step, reason, at
		FROM task_transitions
		WHERE flight_id = ?
		ORDER BY at, id`,
		flightID.String())
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "loading transition history", err)
	}
	defer rows.Close()

	var records []wayline.TransitionRecord
	for rows.Next() {
		var (
			rec        wayline.TransitionRecord
			id, fid    string
			from, to   string
			step       int
		)
		err := rows.Scan(&id, &fid, &rec.DeviceSN, &from, &to, &step, &rec.Reason, &rec.At)
		if err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "scanning transition", err)
		}
		rec.ID = types.ID(id)
		rec.FlightID = types.FlightID(fid)
		rec.From = wayline.TaskStatus(from)
		rec.To = wayline.TaskStatus(to)
		rec.Step = wayline.ExecutionStep(step)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "iterating transitions", err)
	}
	return records, nil
}
