package autopilot

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Manager holds the live autopilot config. The pilot reads it every cycle,
// so updates take effect without a restart.
type Manager struct {
	mu     sync.RWMutex
	config Config

	// OnConfigChange, if set, is called after a valid config is stored.
	OnConfigChange func(cfg Config)
}

// NewManager creates a manager seeded with cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns a copy of the current configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.config
	cfg.HazardLabels = append([]string(nil), m.config.HazardLabels...)
	return cfg
}

// SetConfig validates and stores cfg.
func (m *Manager) SetConfig(cfg Config) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	cfg.HazardLabels = append([]string(nil), cfg.HazardLabels...)

	m.mu.Lock()
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		callback(cfg)
	}
	return nil
}

// param binds one JSON key to a Config field. Durations travel as milliseconds.
type param struct {
	key string
	get func(*Config) any
	set func(*Config, any) bool
}

func floatParam(key string, field func(*Config) *float64) param {
	return param{
		key: key,
		get: func(c *Config) any { return *field(c) },
		set: func(c *Config, v any) bool {
			f, ok := toFloat(v)
			if ok {
				*field(c) = f
			}
			return ok
		},
	}
}

func msParam(key string, field func(*Config) *time.Duration) param {
	return param{
		key: key,
		get: func(c *Config) any { return field(c).Milliseconds() },
		set: func(c *Config, v any) bool {
			f, ok := toFloat(v)
			if ok {
				*field(c) = time.Duration(f * float64(time.Millisecond))
			}
			return ok
		},
	}
}

func boolParam(key string, field func(*Config) *bool) param {
	return param{
		key: key,
		get: func(c *Config) any { return *field(c) },
		set: func(c *Config, v any) bool {
			b, ok := v.(bool)
			if ok {
				*field(c) = b
			}
			return ok
		},
	}
}

func stringParam(key string, field func(*Config) *string) param {
	return param{
		key: key,
		get: func(c *Config) any { return *field(c) },
		set: func(c *Config, v any) bool {
			s, ok := v.(string)
			if ok {
				*field(c) = s
			}
			return ok
		},
	}
}

var params = []param{
	msParam("loop_delay_ms", func(c *Config) *time.Duration { return &c.LoopDelay }),
	msParam("idle_delay_ms", func(c *Config) *time.Duration { return &c.IdleDelay }),
	msParam("stale_after_ms", func(c *Config) *time.Duration { return &c.StaleAfter }),
	boolParam("require_vision", func(c *Config) *bool { return &c.RequireVision }),
	{
		key: "hazard_labels",
		get: func(c *Config) any { return append([]string{}, c.HazardLabels...) },
		set: func(c *Config, v any) bool {
			labels, ok := toStrings(v)
			if ok {
				c.HazardLabels = labels
			}
			return ok
		},
	},
	floatParam("retreat_speed", func(c *Config) *float64 { return &c.RetreatSpeed }),
	msParam("retreat_duration_ms", func(c *Config) *time.Duration { return &c.RetreatDuration }),
	floatParam("avoid_clearance", func(c *Config) *float64 { return &c.AvoidClearance }),
	floatParam("avoid_speed", func(c *Config) *float64 { return &c.AvoidSpeed }),
	floatParam("pivot_speed", func(c *Config) *float64 { return &c.PivotSpeed }),
	msParam("avoid_pause_ms", func(c *Config) *time.Duration { return &c.AvoidPauseDuration }),
	msParam("pivot_duration_ms", func(c *Config) *time.Duration { return &c.PivotDuration }),
	stringParam("stop_label", func(c *Config) *string { return &c.StopLabel }),
	floatParam("cruise_speed", func(c *Config) *float64 { return &c.CruiseSpeed }),
	stringParam("follow_label", func(c *Config) *string { return &c.FollowLabel }),
	floatParam("follow_gain", func(c *Config) *float64 { return &c.FollowGain }),
	floatParam("follow_max_turn", func(c *Config) *float64 { return &c.FollowMaxTurn }),
	floatParam("follow_deadband", func(c *Config) *float64 { return &c.FollowDeadband }),
	floatParam("follow_speed", func(c *Config) *float64 { return &c.FollowSpeed }),
	floatParam("follow_noise", func(c *Config) *float64 { return &c.FollowNoise }),
	boolParam("follow_smoothing", func(c *Config) *bool { return &c.FollowSmoothing }),
	{
		key: "frame_width",
		get: func(c *Config) any { return c.FrameWidth },
		set: func(c *Config, v any) bool {
			f, ok := toFloat(v)
			if ok {
				c.FrameWidth = int(f)
			}
			return ok
		},
	},
	floatParam("explore_speed", func(c *Config) *float64 { return &c.ExploreSpeed }),
	msParam("explore_forward_min_ms", func(c *Config) *time.Duration { return &c.ExploreForward.Min }),
	msParam("explore_forward_max_ms", func(c *Config) *time.Duration { return &c.ExploreForward.Max }),
	msParam("explore_pivot_min_ms", func(c *Config) *time.Duration { return &c.ExplorePivot.Min }),
	msParam("explore_pivot_max_ms", func(c *Config) *time.Duration { return &c.ExplorePivot.Max }),
	msParam("explore_pause_ms", func(c *Config) *time.Duration { return &c.ExplorePause }),
}

// UpdateConfig applies a partial update keyed like GetConfigJSON. A "preset"
// key, if present, is applied first. Unknown keys and mistyped values are
// rejected and nothing changes.
func (m *Manager) UpdateConfig(update map[string]any) error {
	cfg := m.GetConfig()

	if name, ok := update["preset"].(string); ok {
		preset := GetPreset(name)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", name)
		}
		cfg = *preset
	}

	for key, value := range update {
		if key == "preset" {
			continue
		}
		p, ok := lookupParam(key)
		if !ok {
			return fmt.Errorf("unknown parameter: %s", key)
		}
		if !p.set(&cfg, value) {
			return fmt.Errorf("invalid value for %s: %v", key, value)
		}
	}

	return m.SetConfig(cfg)
}

// GetConfigJSON returns the current config as a flat map for JSON responses.
func (m *Manager) GetConfigJSON() map[string]any {
	cfg := m.GetConfig()
	out := make(map[string]any, len(params))
	for _, p := range params {
		out[p.key] = p.get(&cfg)
	}
	return out
}

func lookupParam(key string) (param, bool) {
	for _, p := range params {
		if p.key == key {
			return p, true
		}
	}
	return param{}, false
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toStrings(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...), true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
