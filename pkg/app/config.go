// Package app wires the robot together and owns its lifecycle.
package app

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/Preet3627/Saras-AI/internal/config"
	"github.com/Preet3627/Saras-AI/pkg/memory"
)

// Config holds everything needed to start the robot.
// Flag parsing is done in cmd/saras; this struct is data only.
type Config struct {
	// Debug enables debug logging.
	Debug bool

	// Port is the HTTP listen port.
	Port string

	// Serial link to the motor hat.
	SerialPort string
	BaudRate   int

	// Camera and detector.
	CameraDevice int
	ModelPath    string
	NoCamera     bool

	// DataDir holds settings.json.
	DataDir string

	// WakeStdin reads utterances from standard input, one per line.
	WakeStdin bool

	// DriveURL, when set, sends wheel speeds to a remote motor service
	// instead of the local board.
	DriveURL string

	// APIKey enables the Gemini assistant. Empty means apologies only.
	APIKey string

	// QueueSize bounds pending speech and LED jobs.
	QueueSize int

	// KeepAlive re-sends the current drive command at this period.
	KeepAlive time.Duration
}

// DefaultConfig returns the Raspbot defaults.
func DefaultConfig() Config {
	return Config{
		Port:       config.DefaultPort,
		SerialPort: config.DefaultSerialPort,
		BaudRate:   config.DefaultBaudRate,
		ModelPath:  config.DefaultModelPath,
		DataDir:    config.DefaultDataDir,
		QueueSize:  32,
		KeepAlive:  time.Second,
	}
}

// LoadEnvConfig applies environment overrides.
// Call this after flag parsing.
func (c *Config) LoadEnvConfig() {
	c.Port = config.String("SARAS_PORT", c.Port)
	c.SerialPort = config.String("SARAS_SERIAL", c.SerialPort)
	c.CameraDevice = config.Int("SARAS_CAMERA", c.CameraDevice)
	c.ModelPath = config.String("SARAS_MODEL", c.ModelPath)
	c.DataDir = config.String("SARAS_DATA", c.DataDir)
	if c.APIKey == "" {
		c.APIKey = config.APIKey()
	}
}

// SettingsPath is where custom responses and the wake word are saved.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, memory.FileName)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Port == "" {
		return &ConfigError{Field: "Port", Message: "listen port is required"}
	}
	if c.SerialPort == "" {
		return &ConfigError{Field: "SerialPort", Message: "serial port is required"}
	}
	if c.BaudRate <= 0 {
		return &ConfigError{Field: "BaudRate", Message: "baud rate must be positive"}
	}
	if c.CameraDevice < 0 {
		return &ConfigError{Field: "CameraDevice", Message: "camera device must be >= 0"}
	}
	if !c.NoCamera && c.ModelPath == "" {
		return &ConfigError{Field: "ModelPath", Message: "detector model path is required when the camera is enabled"}
	}
	if c.DataDir == "" {
		return &ConfigError{Field: "DataDir", Message: "data directory is required"}
	}
	if c.QueueSize <= 0 {
		return &ConfigError{Field: "QueueSize", Message: "queue size must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
