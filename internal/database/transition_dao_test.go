package database

import (
	"context"
	"testing"
	"time"

	"github.com/leebs0521/wayline-core/internal/types"
	"github.com/leebs0521/wayline-core/internal/wayline"
)

// TestTransitionDAOAppendHistory tests the append-only log order
func TestTransitionDAOAppendHistory(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	dao := NewTransitionDAO(db)

	base := time.Now().UTC().Truncate(time.Second)
	steps := []struct {
		from, to wayline.TaskStatus
		reason   string
	}{
		{"", wayline.TaskStatusSent, "created"},
		{wayline.TaskStatusSent, wayline.TaskStatusInProgress, ""},
		{wayline.TaskStatusInProgress, wayline.TaskStatusOK, "wayline finished"},
	}
	for i, s := range steps {
		rec := wayline.TransitionRecord{
			ID:       types.NewID(),
			FlightID: "f-audit",
			DeviceSN: "1581F5BKD228Q00A826F",
			From:     s.from,
			To:       s.to,
			Reason:   s.reason,
			At:       base.Add(time.Duration(i) * time.Second),
		}
		if err := dao.Append(ctx, rec); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	recs, err := dao.History(ctx, "f-audit")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, s := range steps {
		if recs[i].To != s.to {
			t.Errorf("record %d: expected to=%s, got %s", i, s.to, recs[i].To)
		}
		if recs[i].Reason != s.reason {
			t.Errorf("record %d: expected reason %q, got %q", i, s.reason, recs[i].Reason)
		}
	}
}

// TestTransitionDAOHistoryIsolated tests that histories do not bleed
// across tasks
func TestTransitionDAOHistoryIsolated(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	dao := NewTransitionDAO(db)

	for _, fid := range []types.FlightID{"f-a", "f-b"} {
		err := dao.Append(ctx, wayline.TransitionRecord{
			ID:       types.NewID(),
			FlightID: fid,
			DeviceSN: "SN",
			To:       wayline.TaskStatusSent,
			At:       time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	recs, err := dao.History(ctx, "f-a")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(recs) != 1 || recs[0].FlightID != "f-a" {
		t.Errorf("expected exactly the f-a record, got %+v", recs)
	}

	empty, err := dao.History(ctx, "f-none")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty history, got %d records", len(empty))
	}
}
