// Package drive turns motion intents into wheel commands for the mecanum base.
//
// Mix is a pure function over the maneuver table. Controller applies the
// result to a Driver with latest-call-wins semantics: there is no command
// queue, each Move immediately replaces whatever the wheels were doing.
package drive

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DefaultSpeed is the speed used when a caller does not specify one.
const DefaultSpeed = 50.0

// Maneuver is a named motion primitive.
type Maneuver int

const (
	Stop Maneuver = iota
	Forward
	Backward
	StrafeLeft
	StrafeRight
	RotateLeft
	RotateRight
)

var maneuverNames = [...]string{
	Stop:        "stop",
	Forward:     "forward",
	Backward:    "backward",
	StrafeLeft:  "strafe_left",
	StrafeRight: "strafe_right",
	RotateLeft:  "rotate_left",
	RotateRight: "rotate_right",
}

// Maneuvers lists every maneuver in table order.
func Maneuvers() []Maneuver {
	return []Maneuver{Forward, Backward, StrafeLeft, StrafeRight, RotateLeft, RotateRight, Stop}
}

func (m Maneuver) String() string {
	if m < 0 || int(m) >= len(maneuverNames) {
		return fmt.Sprintf("maneuver(%d)", int(m))
	}
	return maneuverNames[m]
}

// MarshalJSON encodes the maneuver by name.
func (m Maneuver) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// ParseManeuver accepts the canonical names plus the "move_" command aliases.
func ParseManeuver(s string) (Maneuver, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	switch name {
	case "move_forward":
		return Forward, nil
	case "move_backward":
		return Backward, nil
	}
	for i, n := range maneuverNames {
		if n == name {
			return Maneuver(i), nil
		}
	}
	return Stop, fmt.Errorf("drive: unknown maneuver %q", s)
}

// Wheels holds one speed per wheel: front-left, front-right, rear-left, rear-right.
type Wheels struct {
	FL float64 `json:"fl"`
	FR float64 `json:"fr"`
	RL float64 `json:"rl"`
	RR float64 `json:"rr"`
}

// IsZero reports whether all wheels are stopped.
func (w Wheels) IsZero() bool {
	return w.FL == 0 && w.FR == 0 && w.RL == 0 && w.RR == 0
}

// Mix maps a maneuver and speed magnitude to wheel speeds.
//
//	forward       +s +s +s +s
//	backward      -s -s -s -s
//	strafe_left   -s +s +s -s
//	strafe_right  +s -s -s +s
//	rotate_left   -s +s -s +s
//	rotate_right  +s -s +s -s
//	stop           0  0  0  0
func Mix(m Maneuver, speed float64) Wheels {
	s := math.Abs(speed)
	switch m {
	case Forward:
		return Wheels{s, s, s, s}
	case Backward:
		return Wheels{-s, -s, -s, -s}
	case StrafeLeft:
		return Wheels{-s, s, s, -s}
	case StrafeRight:
		return Wheels{s, -s, -s, s}
	case RotateLeft:
		return Wheels{-s, s, -s, s}
	case RotateRight:
		return Wheels{s, -s, s, -s}
	default:
		return Wheels{}
	}
}
