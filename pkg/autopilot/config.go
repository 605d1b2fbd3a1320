// Package autopilot turns detections and range readings into motor commands
// according to the active mode. A hazard in view overrides every mode.
package autopilot

import (
	"fmt"
	"time"
)

// Span is an inclusive duration range used for randomized maneuvers.
type Span struct {
	Min time.Duration
	Max time.Duration
}

// Pick maps r in [0,1) onto the span.
func (s Span) Pick(r float64) time.Duration {
	if s.Max <= s.Min {
		return s.Min
	}
	return s.Min + time.Duration(r*float64(s.Max-s.Min))
}

// Config holds every autopilot tunable.
type Config struct {
	// Loop pacing
	LoopDelay  time.Duration
	IdleDelay  time.Duration
	StaleAfter time.Duration

	// RequireVision makes missing or stale detections stop Avoid as well.
	// Traffic, Follow and Explore always stop without fresh detections;
	// turn it off only when no camera is fitted so Avoid can run on range.
	RequireVision bool

	// Safety override
	HazardLabels    []string
	RetreatSpeed    float64
	RetreatDuration time.Duration

	// Avoid
	AvoidClearance     float64 // cm
	AvoidSpeed         float64
	PivotSpeed         float64
	AvoidPauseDuration time.Duration
	PivotDuration      time.Duration

	// Traffic
	StopLabel   string
	CruiseSpeed float64

	// Follow
	FollowLabel    string
	FollowGain     float64
	FollowMaxTurn  float64
	FollowDeadband float64
	FollowSpeed    float64
	FrameWidth     int // used when perception reports no width

	// FollowSmoothing runs the target centre through a constant-velocity
	// Kalman filter before the turn law. FollowNoise is the assumed
	// detector jitter in pixels.
	FollowSmoothing bool
	FollowNoise     float64

	// Explore
	ExploreSpeed   float64
	ExploreForward Span
	ExplorePivot   Span
	ExplorePause   time.Duration
}

// DefaultConfig returns the tuned production values.
func DefaultConfig() Config {
	return Config{
		LoopDelay:     100 * time.Millisecond,
		IdleDelay:     500 * time.Millisecond,
		StaleAfter:    time.Second,
		RequireVision: true,

		HazardLabels:    []string{"knife", "scissors"},
		RetreatSpeed:    70,
		RetreatDuration: time.Second,

		AvoidClearance:     25,
		AvoidSpeed:         40,
		PivotSpeed:         50,
		AvoidPauseDuration: 100 * time.Millisecond,
		PivotDuration:      500 * time.Millisecond,

		StopLabel:   "stop sign",
		CruiseSpeed: 30,

		FollowLabel:    "car",
		FollowGain:     0.25,
		FollowMaxTurn:  60,
		FollowDeadband: 8,
		FollowSpeed:    35,
		FrameWidth:     640,
		FollowNoise:    10,

		ExploreSpeed:   40,
		ExploreForward: Span{Min: time.Second, Max: 3 * time.Second},
		ExplorePivot:   Span{Min: 300 * time.Millisecond, Max: 1200 * time.Millisecond},
		ExplorePause:   500 * time.Millisecond,
	}
}

// Validate checks ranges and returns a list of problems, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	speed := func(name string, v float64) {
		if v <= 0 || v > 100 {
			errors = append(errors, fmt.Sprintf("%s must be in (0, 100]", name))
		}
	}
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errors = append(errors, name+" must be positive")
		}
	}

	positive("loop_delay_ms", c.LoopDelay)
	positive("idle_delay_ms", c.IdleDelay)
	positive("stale_after_ms", c.StaleAfter)
	positive("retreat_duration_ms", c.RetreatDuration)
	positive("pivot_duration_ms", c.PivotDuration)
	if c.AvoidPauseDuration < 0 || c.ExplorePause < 0 {
		errors = append(errors, "pause durations must not be negative")
	}

	speed("retreat_speed", c.RetreatSpeed)
	speed("avoid_speed", c.AvoidSpeed)
	speed("pivot_speed", c.PivotSpeed)
	speed("cruise_speed", c.CruiseSpeed)
	speed("follow_speed", c.FollowSpeed)
	speed("explore_speed", c.ExploreSpeed)
	speed("follow_max_turn", c.FollowMaxTurn)

	if c.AvoidClearance <= 0 || c.AvoidClearance > 400 {
		errors = append(errors, "avoid_clearance must be in (0, 400] cm")
	}
	if c.FollowGain <= 0 || c.FollowGain > 5 {
		errors = append(errors, "follow_gain must be in (0, 5]")
	}
	if c.FollowDeadband < 0 || c.FollowDeadband >= c.FollowMaxTurn {
		errors = append(errors, "follow_deadband must be in [0, follow_max_turn)")
	}
	if c.FollowSmoothing && c.FollowNoise <= 0 {
		errors = append(errors, "follow_noise must be positive when smoothing")
	}
	if c.FrameWidth < 1 {
		errors = append(errors, "frame_width must be positive")
	}
	if c.StopLabel == "" || c.FollowLabel == "" {
		errors = append(errors, "stop_label and follow_label must be set")
	}
	for _, s := range []struct {
		name string
		span Span
	}{{"explore_forward", c.ExploreForward}, {"explore_pivot", c.ExplorePivot}} {
		if s.span.Min <= 0 || s.span.Max < s.span.Min {
			errors = append(errors, s.name+" range must be positive with min <= max")
		}
	}

	return errors
}
