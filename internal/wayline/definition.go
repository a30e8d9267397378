package wayline

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leebs0521/wayline-core/internal/types"
)

// TaskDefinition is the operator-authored YAML document describing one
// flight task: identity, wayline file and execution configuration in a
// single submittable unit.
//
//	flight_id: survey-2026-09-01-a
//	device_sn: 1581F5BKD228Q00A826F
//	file:
//	  url: s3://waylines/survey-a.kmz
//	  fingerprint: "md5:0a1b2c3d4e5f60718293a4b5c6d7e8f9"
//	config:
//	  task_type: timed
//	  wayline_type: waypoint
//	  execute_time: 2026-09-01T06:30:00Z
//	  rth_altitude: 100
//	  out_of_control_action: return_to_home
type TaskDefinition struct {
	FlightID string     `yaml:"flight_id"`
	DeviceSN string     `yaml:"device_sn"`
	File     FileRef    `yaml:"file"`
	Config   TaskConfig `yaml:"config"`
}

// ParseTaskDefinition decodes and validates one YAML document.
func ParseTaskDefinition(data []byte) (*TaskDefinition, error) {
	var def TaskDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decoding task definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadTaskDefinition reads and parses a task definition file.
func LoadTaskDefinition(path string) (*TaskDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task definition: %w", err)
	}
	def, err := ParseTaskDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Validate checks the definition the same way the lifecycle intents
// would, so a bad document fails before anything is registered.
func (d *TaskDefinition) Validate() error {
	if _, err := types.ParseFlightID(d.FlightID); err != nil {
		return fmt.Errorf("flight_id: %w", err)
	}
	if d.DeviceSN == "" {
		return fmt.Errorf("device_sn is required")
	}
	if err := d.File.Validate(); err != nil {
		return fmt.Errorf("file: %w", err)
	}
	if err := d.Config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if d.Config.TaskType == TaskTypeTimed && d.Config.ExecuteTime != nil {
		if d.Config.ExecuteTime.Before(time.Now().Add(-time.Minute)) {
			return fmt.Errorf("config: execute_time %s is in the past",
				d.Config.ExecuteTime.Format(time.RFC3339))
		}
	}
	return nil
}

// Submit registers and prepares the defined task in one call.
func (d *TaskDefinition) Submit(ctx context.Context, c *Controller) (*FlightTask, error) {
	task, err := c.Create(ctx, d.FlightID, d.DeviceSN, d.File)
	if err != nil {
		return nil, err
	}
	cfg := d.Config
	if err := c.Prepare(ctx, task.FlightID, &cfg); err != nil {
		return nil, err
	}
	return c.GetTask(ctx, task.FlightID)
}
