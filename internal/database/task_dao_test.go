package database

import (
	"context"
	"testing"
	"time"

	"github.com/leebs0521/wayline-core/internal/types"
	"github.com/leebs0521/wayline-core/internal/wayline"
)

func testTask(flightID string) *wayline.FlightTask {
	now := time.Now().UTC().Truncate(time.Second)
	return &wayline.FlightTask{
		FlightID: types.FlightID(flightID),
		DeviceSN: "1581F5BKD228Q00A826F",
		File: wayline.FileRef{
			URL:         "s3://waylines/survey-a.kmz",
			Fingerprint: "md5:0a1b2c3d4e5f60718293a4b5c6d7e8f9",
		},
		Status:    wayline.TaskStatusSent,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestTaskDAORoundTrip tests saving and loading a full flight task
func TestTaskDAORoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	dao := NewTaskDAO(db)

	task := testTask("f-roundtrip")
	task.Status = wayline.TaskStatusPaused
	task.Step = wayline.StepWaylineExecution
	task.Percent = 40
	task.Reason = "user_pause"
	task.Config = &wayline.TaskConfig{
		TaskType:           wayline.TaskTypeImmediate,
		WaylineType:        wayline.WaylineTypeWaypoint,
		RthAltitude:        100,
		OutOfControlAction: wayline.OutOfControlReturnHome,
	}
	task.Breakpoint = &wayline.Breakpoint{
		WaylineID:   0,
		Index:       12,
		State:       wayline.BreakpointOnWaypoint,
		Progress:    0,
		BreakReason: wayline.BreakReasonUserPause,
	}
	started := time.Now().UTC().Truncate(time.Second)
	task.StartedAt = &started

	if err := dao.Save(ctx, task); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := dao.Get(ctx, task.FlightID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.FlightID != task.FlightID {
		t.Errorf("expected flight id %s, got %s", task.FlightID, got.FlightID)
	}
	if got.Status != wayline.TaskStatusPaused {
		t.Errorf("expected status paused, got %s", got.Status)
	}
	if got.Step != wayline.StepWaylineExecution {
		t.Errorf("expected step %d, got %d", wayline.StepWaylineExecution, got.Step)
	}
	if got.Percent != 40 {
		t.Errorf("expected percent 40, got %d", got.Percent)
	}
	if got.Config == nil || got.Config.TaskType != wayline.TaskTypeImmediate {
		t.Errorf("config not restored: %+v", got.Config)
	}
	if got.Breakpoint == nil || got.Breakpoint.Index != 12 {
		t.Errorf("breakpoint not restored: %+v", got.Breakpoint)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Errorf("started_at not restored: %v", got.StartedAt)
	}
}

// TestTaskDAOSaveReplaces tests that saving twice keeps one row
func TestTaskDAOSaveReplaces(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	dao := NewTaskDAO(db)

	task := testTask("f-replace")
	if err := dao.Save(ctx, task); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	task.Status = wayline.TaskStatusInProgress
	task.Percent = 10
	if err := dao.Save(ctx, task); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := dao.Get(ctx, task.FlightID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != wayline.TaskStatusInProgress {
		t.Errorf("expected status in_progress, got %s", got.Status)
	}

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM flight_tasks").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

// TestTaskDAOGetMissing tests the not-found mapping
func TestTaskDAOGetMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dao := NewTaskDAO(db)
	_, err := dao.Get(context.Background(), "f-missing")
	if err == nil {
		t.Fatal("expected error for missing task")
	}
	if !wayline.IsNotFoundError(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

// TestTaskDAOListLive tests that only non-terminal tasks are listed
func TestTaskDAOListLive(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	dao := NewTaskDAO(db)

	statuses := map[string]wayline.TaskStatus{
		"f-sent":   wayline.TaskStatusSent,
		"f-run":    wayline.TaskStatusInProgress,
		"f-paused": wayline.TaskStatusPaused,
		"f-done":   wayline.TaskStatusOK,
		"f-failed": wayline.TaskStatusFailed,
	}
	for id, status := range statuses {
		task := testTask(id)
		task.Status = status
		if status.IsTerminal() {
			done := time.Now().UTC()
			task.CompletedAt = &done
		}
		if err := dao.Save(ctx, task); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}

	live, err := dao.ListLive(ctx)
	if err != nil {
		t.Fatalf("ListLive failed: %v", err)
	}
	if len(live) != 3 {
		t.Fatalf("expected 3 live tasks, got %d", len(live))
	}
	for _, task := range live {
		if task.Status.IsTerminal() {
			t.Errorf("terminal task %s listed as live", task.FlightID)
		}
	}
}
