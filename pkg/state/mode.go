// Package state holds the robot's shared state behind a single mutex:
// the latest detections, the autopilot mode and its transition history,
// the set of greeted entities, custom responses and the wake word.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Mode is the active autopilot behaviour.
type Mode int

const (
	Off Mode = iota
	Avoid
	Traffic
	Follow
	Explore
)

var modeNames = [...]string{"off", "avoid", "traffic", "follow", "explore"}

// ErrUnknownMode is returned for mode names outside the enum.
var ErrUnknownMode = errors.New("state: unknown mode")

// Modes returns every mode in order.
func Modes() []Mode {
	return []Mode{Off, Avoid, Traffic, Follow, Explore}
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m >= Off && m <= Explore
}

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode accepts a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	return Off, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// MarshalJSON encodes the mode as its name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a mode name.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
