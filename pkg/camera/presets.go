package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLow     = "low"
	PresetSmooth  = "smooth"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetLow:     LowPowerConfig(),
		PresetSmooth:  SmoothConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLow,
		PresetSmooth,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// LowPowerConfig trades detection latency for CPU on battery.
func LowPowerConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 160
	cfg.Height = 120
	cfg.TargetFPS = 5
	return cfg
}

// SmoothConfig matches the ~66ms tick the mood machine assumes.
func SmoothConfig() Config {
	cfg := DefaultConfig()
	cfg.TargetFPS = 15
	return cfg
}
