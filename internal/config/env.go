// Package config provides environment helpers for Saras commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults shared by the service and its tools.
const (
	DefaultPort       = "5001"
	DefaultSerialPort = "/dev/ttyAMA0"
	DefaultBaudRate   = 115200
	DefaultDataDir    = "data"
	DefaultModelPath  = "models/yolov8n.onnx"
)

// String returns the value of key, or def when it is unset or empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns key parsed as an integer, or def when unset or malformed.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Bool returns key parsed with strconv.ParseBool, or def.
func Bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration returns key parsed with time.ParseDuration, or def.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// APIKey returns the Gemini key from GEMINI_API_KEY, falling back to API_KEY.
func APIKey() string {
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("API_KEY")
}

// ServiceURL returns the base URL of a running Saras service.
// SARAS_URL wins over the given default.
func ServiceURL(def string) string {
	return String("SARAS_URL", def)
}
