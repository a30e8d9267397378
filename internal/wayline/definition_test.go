package wayline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDefinitionYAML = `
flight_id: survey-2026-09-01-a
device_sn: 1581F5BKD228Q00A826F
file:
  url: s3://waylines/survey-a.kmz
  fingerprint: "md5:0a1b2c3d4e5f60718293a4b5c6d7e8f9"
config:
  task_type: immediate
  wayline_type: waypoint
  rth_altitude: 100
  out_of_control_action: return_to_home
`

func TestParseTaskDefinition(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		def, err := ParseTaskDefinition([]byte(validDefinitionYAML))
		require.NoError(t, err)
		assert.Equal(t, "survey-2026-09-01-a", def.FlightID)
		assert.Equal(t, testDeviceSN, def.DeviceSN)
		assert.Equal(t, TaskTypeImmediate, def.Config.TaskType)
		assert.Equal(t, WaylineTypeWaypoint, def.Config.WaylineType)
		assert.Equal(t, 100, def.Config.RthAltitude)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseTaskDefinition([]byte("flight_id: [unclosed"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding task definition")
	})

	t.Run("missing device sn", func(t *testing.T) {
		_, err := ParseTaskDefinition([]byte(`
flight_id: f-no-device
file:
  url: s3://waylines/a.kmz
  fingerprint: "md5:0a1b2c3d4e5f60718293a4b5c6d7e8f9"
config:
  task_type: immediate
  wayline_type: waypoint
  rth_altitude: 100
  out_of_control_action: return_to_home
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device_sn")
	})

	t.Run("bad fingerprint", func(t *testing.T) {
		_, err := ParseTaskDefinition([]byte(`
flight_id: f-bad-file
device_sn: 1581F5BKD228Q00A826F
file:
  url: s3://waylines/a.kmz
  fingerprint: "not-a-fingerprint"
config:
  task_type: immediate
  wayline_type: waypoint
  rth_altitude: 100
  out_of_control_action: return_to_home
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "file:")
	})

	t.Run("timed task in the past", func(t *testing.T) {
		past := time.Now().Add(-time.Hour).Format(time.RFC3339)
		_, err := ParseTaskDefinition([]byte(`
flight_id: f-past
device_sn: 1581F5BKD228Q00A826F
file:
  url: s3://waylines/a.kmz
  fingerprint: "md5:0a1b2c3d4e5f60718293a4b5c6d7e8f9"
config:
  task_type: timed
  wayline_type: waypoint
  execute_time: ` + past + `
  rth_altitude: 100
  out_of_control_action: return_to_home
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "in the past")
	})
}

func TestLoadTaskDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validDefinitionYAML), 0o644))

	def, err := LoadTaskDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "survey-2026-09-01-a", def.FlightID)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTaskDefinition(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid file names the path", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("flight_id: ''\n"), 0o644))
		_, err := LoadTaskDefinition(bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), bad)
	})
}

func TestDefinitionSubmit(t *testing.T) {
	rig := setupTestRig(t)

	def, err := ParseTaskDefinition([]byte(validDefinitionYAML))
	require.NoError(t, err)

	task, err := def.Submit(context.Background(), rig.controller)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusSent, task.Status)
	require.NotNil(t, task.Config)
	assert.Equal(t, TaskTypeImmediate, task.Config.TaskType)
}
