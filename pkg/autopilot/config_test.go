package autopilot

import (
	"testing"
	"time"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RetreatSpeed != 70 || cfg.RetreatDuration != time.Second {
		t.Errorf("retreat = %v for %v", cfg.RetreatSpeed, cfg.RetreatDuration)
	}
	if cfg.AvoidClearance != 25 || cfg.CruiseSpeed != 30 || cfg.FollowLabel != "car" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.HazardLabels) != 2 {
		t.Errorf("hazards = %v", cfg.HazardLabels)
	}
}

func TestPresets_Valid(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("preset %q missing", name)
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("preset %q invalid: %v", name, errs)
		}
	}
	if GetPreset("turbo") != nil {
		t.Error("unknown preset should be nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero loop delay", func(c *Config) { c.LoopDelay = 0 }},
		{"speed above 100", func(c *Config) { c.AvoidSpeed = 120 }},
		{"zero cruise", func(c *Config) { c.CruiseSpeed = 0 }},
		{"deadband beyond max turn", func(c *Config) { c.FollowDeadband = 70 }},
		{"negative gain", func(c *Config) { c.FollowGain = -1 }},
		{"inverted span", func(c *Config) { c.ExplorePivot = Span{Min: time.Second, Max: time.Millisecond} }},
		{"empty follow label", func(c *Config) { c.FollowLabel = "" }},
		{"zero frame width", func(c *Config) { c.FrameWidth = 0 }},
		{"smoothing without noise", func(c *Config) { c.FollowSmoothing, c.FollowNoise = true, 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if errs := cfg.Validate(); len(errs) == 0 {
				t.Error("expected validation errors")
			}
		})
	}
}

func TestSpan_Pick(t *testing.T) {
	s := Span{Min: time.Second, Max: 3 * time.Second}
	if s.Pick(0) != time.Second || s.Pick(0.5) != 2*time.Second {
		t.Errorf("Pick = %v, %v", s.Pick(0), s.Pick(0.5))
	}
	if (Span{Min: time.Second}).Pick(0.7) != time.Second {
		t.Error("degenerate span should return Min")
	}
}

func TestManager_UpdateConfig(t *testing.T) {
	m := NewManager(DefaultConfig())

	var changed int
	m.OnConfigChange = func(Config) { changed++ }

	err := m.UpdateConfig(map[string]any{
		"avoid_clearance":   float64(40),
		"loop_delay_ms":     float64(50),
		"hazard_labels":     []any{"knife", "fork"},
		"follow_label":      "person",
		"explore_pause_ms":  float64(250),
		"require_vision":    false,
		"follow_deadband":   float64(4),
		"frame_width":       float64(320),
		"retreat_speed":     80,
		"pivot_duration_ms": float64(400),
	})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	cfg := m.GetConfig()
	if cfg.AvoidClearance != 40 || cfg.LoopDelay != 50*time.Millisecond || cfg.FollowLabel != "person" {
		t.Errorf("config = %+v", cfg)
	}
	if len(cfg.HazardLabels) != 2 || cfg.HazardLabels[1] != "fork" {
		t.Errorf("hazards = %v", cfg.HazardLabels)
	}
	if cfg.RequireVision || cfg.FrameWidth != 320 || cfg.RetreatSpeed != 80 {
		t.Errorf("config = %+v", cfg)
	}
	if changed != 1 {
		t.Errorf("callback calls = %d", changed)
	}
}

func TestManager_UpdateConfigRejects(t *testing.T) {
	tests := []struct {
		name   string
		update map[string]any
	}{
		{"unknown key", map[string]any{"warp_speed": float64(9)}},
		{"wrong type", map[string]any{"cruise_speed": "fast"}},
		{"invalid value", map[string]any{"cruise_speed": float64(0)}},
		{"bad labels", map[string]any{"hazard_labels": []any{"knife", 3}}},
		{"unknown preset", map[string]any{"preset": "turbo"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager(DefaultConfig())
			if err := m.UpdateConfig(tc.update); err == nil {
				t.Error("expected error")
			}
			if m.GetConfig().CruiseSpeed != 30 {
				t.Error("rejected update changed the config")
			}
		})
	}
}

func TestManager_PresetWithOverride(t *testing.T) {
	m := NewManager(DefaultConfig())
	if err := m.UpdateConfig(map[string]any{"preset": "cautious", "cruise_speed": float64(15)}); err != nil {
		t.Fatal(err)
	}
	cfg := m.GetConfig()
	if cfg.AvoidClearance != 40 || cfg.CruiseSpeed != 15 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestManager_GetConfigJSON(t *testing.T) {
	m := NewManager(DefaultConfig())
	js := m.GetConfigJSON()

	if js["loop_delay_ms"] != int64(100) {
		t.Errorf("loop_delay_ms = %v (%T)", js["loop_delay_ms"], js["loop_delay_ms"])
	}
	if js["stop_label"] != "stop sign" {
		t.Errorf("stop_label = %v", js["stop_label"])
	}
	if len(js) != len(params) {
		t.Errorf("keys = %d, want %d", len(js), len(params))
	}
}

func TestManager_GetConfigCopiesLabels(t *testing.T) {
	m := NewManager(DefaultConfig())
	cfg := m.GetConfig()
	cfg.HazardLabels[0] = "spoon"
	if m.GetConfig().HazardLabels[0] != "knife" {
		t.Error("GetConfig leaked the internal slice")
	}
}
