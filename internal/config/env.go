// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/boothworks/boothd/internal/log"
)

// ParseString reads a string from an environment variable or returns the
// default value. Empty variables fall back to the default.
func ParseString(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

// ParseInt reads an integer from an environment variable or returns the
// default value. Invalid values are logged and ignored.
func ParseInt(key string, defaultValue int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
	}
	return defaultValue
}

// ParseBool reads a boolean from an environment variable or returns the
// default value. Accepts the forms understood by strconv.ParseBool.
func ParseBool(key string, defaultValue bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Bool("default", defaultValue).
			Msg("invalid boolean in environment variable, using default")
	}
	return defaultValue
}

// ParseDuration reads a duration in Go duration format (e.g. "5s") from an
// environment variable or returns the default value.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
	}
	return defaultValue
}

// applyEnv overlays BOOTHD_* environment variables onto cfg.
func applyEnv(cfg AppConfig) AppConfig {
	cfg.ListenAddr = ParseString("BOOTHD_LISTEN", cfg.ListenAddr)
	cfg.MetricsAddr = ParseString("BOOTHD_METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = ParseString("BOOTHD_LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = ParseString("BOOTHD_DATA", cfg.DataDir)
	cfg.GPhoto2Bin = ParseString("BOOTHD_GPHOTO2_BIN", cfg.GPhoto2Bin)
	cfg.CaptureTimeout = ParseDuration("BOOTHD_CAPTURE_TIMEOUT", cfg.CaptureTimeout)
	cfg.ProbeTimeout = ParseDuration("BOOTHD_PROBE_TIMEOUT", cfg.ProbeTimeout)
	cfg.PrinterQueue = ParseString("BOOTHD_PRINTER_QUEUE", cfg.PrinterQueue)
	cfg.LPBin = ParseString("BOOTHD_LP_BIN", cfg.LPBin)
	cfg.LPStatBin = ParseString("BOOTHD_LPSTAT_BIN", cfg.LPStatBin)
	cfg.CountdownSeconds = ParseInt("BOOTHD_COUNTDOWN_SECONDS", cfg.CountdownSeconds)
	cfg.DefaultImages = ParseInt("BOOTHD_DEFAULT_IMAGES", cfg.DefaultImages)
	cfg.MaxPrintCount = ParseInt("BOOTHD_MAX_PRINT_COUNT", cfg.MaxPrintCount)
	cfg.LogoPath = ParseString("BOOTHD_LOGO", cfg.LogoPath)
	cfg.AlbumInfoLine = ParseString("BOOTHD_ALBUM_INFO_LINE", cfg.AlbumInfoLine)
	cfg.AlbumLinkLine = ParseString("BOOTHD_ALBUM_LINK_LINE", cfg.AlbumLinkLine)
	cfg.HealthInterval = ParseDuration("BOOTHD_HEALTH_INTERVAL", cfg.HealthInterval)
	cfg.CommandRatePerMinute = ParseInt("BOOTHD_COMMAND_RPM", cfg.CommandRatePerMinute)
	cfg.FakeHardware = ParseBool("BOOTHD_FAKE_HARDWARE", cfg.FakeHardware)
	return cfg
}
