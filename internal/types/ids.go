package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID is a custom type that wraps a UUID string.
// It is used for command correlation ids and persisted row ids.
type ID string

// NewID generates a new UUID v4 and returns it as an ID.
// It will never return an error as uuid.New() uses crypto/rand
// which panics on system-level failures (extremely rare).
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID parses and validates a string as a UUID, returning an ID.
// It returns an error if the string is not a valid UUID format.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("ID cannot be empty")
	}

	parsedUUID, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID format: %w", err)
	}

	return ID(parsedUUID.String()), nil
}

// Validate checks if the ID is a valid UUID.
// Returns an error if the ID is invalid or empty.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}

	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid UUID format: %w", err)
	}

	return nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is empty or zero-valued.
func (id ID) IsZero() bool {
	return id == ""
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// UnmarshalJSON implements json.Unmarshaler and validates the UUID format.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseID(s)
	if err != nil {
		return err
	}

	*id = parsed
	return nil
}

// FlightID is the caller-chosen identifier of a flight task.
// It is unique per device and must be safe to embed in topic names
// and file paths, so path-unsafe characters are rejected.
type FlightID string

// flightIDUnsafe lists the characters a FlightID may not contain.
// Slashes and dots would break topic routing and on-disk layout,
// the rest are MQTT wildcard or shell metacharacters.
const flightIDUnsafe = `/\#+*?"<>|:` + " \t\n"

// ParseFlightID validates a caller-supplied flight id.
func ParseFlightID(s string) (FlightID, error) {
	if s == "" {
		return "", fmt.Errorf("flight id cannot be empty")
	}
	if len(s) > 128 {
		return "", fmt.Errorf("flight id too long: %d characters (max 128)", len(s))
	}
	if i := strings.IndexAny(s, flightIDUnsafe); i >= 0 {
		return "", fmt.Errorf("flight id contains unsafe character %q", s[i])
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return "", fmt.Errorf("flight id cannot start or end with a dot")
	}
	return FlightID(s), nil
}

// String returns the string representation of the flight id.
func (f FlightID) String() string {
	return string(f)
}

// IsZero checks if the flight id is empty.
func (f FlightID) IsZero() bool {
	return f == ""
}
