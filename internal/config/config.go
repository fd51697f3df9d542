// Package config assembles the runtime configuration from a .env file,
// process environment and an optional YAML filter preset. Everything here
// is read once at startup; per-cycle snapshots are the loop's concern.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"toonloop/internal/cartoon"
)

type Config struct {
	// DeviceID selects the capture device; VideoFile, when set, wins and
	// streams from a file instead.
	DeviceID  int
	VideoFile string

	// ListenAddr is the telemetry websocket listener.
	ListenAddr string

	// TickIntervalMs is the scheduling interval driving the frame loop,
	// one cycle per tick.
	TickIntervalMs int

	// Constrained marks mobile-class devices: seeds low quality tier and
	// enables the frame-skip growth response.
	Constrained bool

	// Headless disables the preview window.
	Headless bool

	// PresetPath points to an optional YAML FilterParameters preset.
	PresetPath string

	LogLevel string
}

// Load reads .env (best effort) and then the environment with defaults.
func Load() *Config {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	return &Config{
		DeviceID:       getEnvAsInt("DEVICE_ID", 0),
		VideoFile:      getEnv("VIDEO_FILE", ""),
		ListenAddr:     getEnv("LISTEN_ADDR", ":8654"),
		TickIntervalMs: getEnvAsInt("TICK_INTERVAL_MS", 33),
		Constrained:    getEnvAsBool("CONSTRAINED_DEVICE", false),
		Headless:       getEnvAsBool("HEADLESS", false),
		PresetPath:     getEnv("FILTER_PRESET", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

// LoadPreset overlays a YAML preset file onto the default parameters and
// validates the result.
func LoadPreset(path string) (cartoon.FilterParameters, error) {
	params := cartoon.DefaultParameters()

	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("reading preset %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("parsing preset %q: %w", path, err)
	}

	if err := params.Validate(); err != nil {
		return params, fmt.Errorf("invalid preset %q: %w", path, err)
	}

	return params, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
