package autopilot

import "time"

// Preset names.
const (
	PresetDefault  = "default"
	PresetCautious = "cautious"
	PresetSporty   = "sporty"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:  DefaultConfig(),
		PresetCautious: CautiousConfig(),
		PresetSporty:   SportyConfig(),
	}
}

// PresetNames returns the preset names in display order.
func PresetNames() []string {
	return []string{PresetDefault, PresetCautious, PresetSporty}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// CautiousConfig keeps more distance and drives slower. Good for classrooms.
func CautiousConfig() Config {
	cfg := DefaultConfig()
	cfg.AvoidClearance = 40
	cfg.AvoidSpeed = 30
	cfg.CruiseSpeed = 20
	cfg.FollowSpeed = 25
	cfg.FollowMaxTurn = 40
	cfg.ExploreSpeed = 30
	cfg.HazardLabels = append(cfg.HazardLabels, "fork")
	return cfg
}

// SportyConfig reacts faster and drives harder.
func SportyConfig() Config {
	cfg := DefaultConfig()
	cfg.LoopDelay = 50 * time.Millisecond
	cfg.AvoidClearance = 20
	cfg.AvoidSpeed = 60
	cfg.CruiseSpeed = 45
	cfg.FollowGain = 0.35
	cfg.FollowMaxTurn = 80
	cfg.FollowSpeed = 50
	cfg.ExploreSpeed = 60
	cfg.PivotDuration = 350 * time.Millisecond
	return cfg
}
