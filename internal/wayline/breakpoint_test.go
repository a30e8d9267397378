package wayline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leebs0521/wayline-core/internal/types"
)

func TestBreakpointValidate(t *testing.T) {
	tests := []struct {
		name    string
		bp      Breakpoint
		wantErr bool
	}{
		{
			"on segment mid-progress",
			Breakpoint{WaylineID: 0, Index: 5, State: BreakpointOnSegment, Progress: 0.5},
			false,
		},
		{
			"on waypoint progress zero",
			Breakpoint{WaylineID: 0, Index: 5, State: BreakpointOnWaypoint, Progress: 0},
			false,
		},
		{
			"on waypoint progress one",
			Breakpoint{WaylineID: 0, Index: 5, State: BreakpointOnWaypoint, Progress: 1},
			false,
		},
		{
			"on waypoint fractional progress",
			Breakpoint{WaylineID: 0, Index: 5, State: BreakpointOnWaypoint, Progress: 0.3},
			true,
		},
		{
			"negative index",
			Breakpoint{WaylineID: 0, Index: -1, State: BreakpointOnSegment, Progress: 0.5},
			true,
		},
		{
			"negative wayline id",
			Breakpoint{WaylineID: -2, Index: 0, State: BreakpointOnSegment, Progress: 0.5},
			true,
		},
		{
			"progress above one",
			Breakpoint{WaylineID: 0, Index: 0, State: BreakpointOnSegment, Progress: 1.2},
			true,
		},
		{
			"unknown state",
			Breakpoint{WaylineID: 0, Index: 0, State: BreakpointState("hovering"), Progress: 0.5},
			true,
		},
		{
			"unknown break reason",
			Breakpoint{WaylineID: 0, Index: 0, State: BreakpointOnSegment, Progress: 0.5,
				BreakReason: BreakReason("cosmic_rays")},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bp.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBreakpointStore(t *testing.T) {
	store := NewBreakpointStore()
	fid := types.FlightID("f-bp")

	t.Run("get on empty store", func(t *testing.T) {
		assert.Nil(t, store.Get(fid))
	})

	t.Run("put rejects invalid snapshots", func(t *testing.T) {
		err := store.Put(fid, &Breakpoint{State: BreakpointOnWaypoint, Progress: 0.5})
		assert.Error(t, err)
		assert.Nil(t, store.Get(fid))
	})

	t.Run("put stores a copy", func(t *testing.T) {
		bp := &Breakpoint{WaylineID: 0, Index: 7, State: BreakpointOnSegment, Progress: 0.4}
		require.NoError(t, store.Put(fid, bp))

		bp.Index = 99
		got := store.Get(fid)
		require.NotNil(t, got)
		assert.Equal(t, 7, got.Index)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		got := store.Get(fid)
		got.Index = 42
		assert.Equal(t, 7, store.Get(fid).Index)
	})

	t.Run("newer snapshot replaces older", func(t *testing.T) {
		require.NoError(t, store.Put(fid, &Breakpoint{
			WaylineID: 0, Index: 9, State: BreakpointOnSegment, Progress: 0.9,
		}))
		assert.Equal(t, 9, store.Get(fid).Index)
	})

	t.Run("clear", func(t *testing.T) {
		store.Clear(fid)
		assert.Nil(t, store.Get(fid))
		assert.Zero(t, store.Len())
	})
}
