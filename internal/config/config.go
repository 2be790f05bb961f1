// SPDX-License-Identifier: MIT

// Package config loads and validates the boothd configuration with the
// precedence ENV > file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// AppConfig is the effective configuration of the daemon after merging
// defaults, the optional YAML file and environment overrides.
type AppConfig struct {
	// Server
	ListenAddr      string        `yaml:"listenAddr"`
	MetricsAddr     string        `yaml:"metricsAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// Logging
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`

	// Storage
	DataDir string `yaml:"dataDir"`

	// Camera
	GPhoto2Bin     string        `yaml:"gphoto2Bin"`
	CaptureTimeout time.Duration `yaml:"captureTimeout"`
	ProbeTimeout   time.Duration `yaml:"probeTimeout"`

	// Printer
	PrinterQueue string `yaml:"printerQueue"`
	LPBin        string `yaml:"lpBin"`
	LPStatBin    string `yaml:"lpstatBin"`

	// Session flow
	CountdownSeconds int `yaml:"countdownSeconds"`
	DefaultImages    int `yaml:"defaultImages"`
	MaxPrintCount    int `yaml:"maxPrintCount"`

	// Composition
	LogoPath      string `yaml:"logoPath"`
	AlbumInfoLine string `yaml:"albumInfoLine"`
	AlbumLinkLine string `yaml:"albumLinkLine"`

	// Health
	HealthInterval time.Duration `yaml:"healthInterval"`

	// Rate limiting
	CommandRatePerMinute int `yaml:"commandRatePerMinute"`

	// FakeHardware swaps the gphoto2/lp gateways for in-process fakes.
	// Useful on development machines without a camera or CUPS queue.
	FakeHardware bool `yaml:"fakeHardware"`

	Version string `yaml:"-"`
}

// Defaults returns the built-in configuration baseline.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:           ":8080",
		MetricsAddr:          "",
		ReadTimeout:          10 * time.Second,
		WriteTimeout:         30 * time.Second,
		ShutdownTimeout:      15 * time.Second,
		LogLevel:             "info",
		LogService:           "boothd",
		DataDir:              "/var/lib/boothd",
		GPhoto2Bin:           "gphoto2",
		CaptureTimeout:       10 * time.Second,
		ProbeTimeout:         5 * time.Second,
		PrinterQueue:         "",
		LPBin:                "lp",
		LPStatBin:            "lpstat",
		CountdownSeconds:     3,
		DefaultImages:        3,
		MaxPrintCount:        10,
		AlbumInfoLine:        "Find your photos online",
		AlbumLinkLine:        "booth.example/album",
		HealthInterval:       2 * time.Second,
		CommandRatePerMinute: 60,
	}
}

// ValidationError describes a single invalid configuration setting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// Validate checks the configuration for settings that would make session
// starts impossible. A non-nil result is a joined list of ValidationErrors.
func (c AppConfig) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, &ValidationError{Field: "dataDir", Reason: "is required"})
	}
	if c.LogoPath == "" {
		errs = append(errs, &ValidationError{Field: "logoPath", Reason: "is required"})
	} else if info, err := os.Stat(c.LogoPath); err != nil {
		errs = append(errs, &ValidationError{Field: "logoPath", Reason: fmt.Sprintf("not readable: %v", err)})
	} else if info.IsDir() {
		errs = append(errs, &ValidationError{Field: "logoPath", Reason: "is a directory, expected image file"})
	}
	if !c.FakeHardware && c.PrinterQueue == "" {
		errs = append(errs, &ValidationError{Field: "printerQueue", Reason: "is required"})
	}
	if c.CountdownSeconds < 0 {
		errs = append(errs, &ValidationError{Field: "countdownSeconds", Reason: "must be >= 0"})
	}
	if c.DefaultImages < 1 {
		errs = append(errs, &ValidationError{Field: "defaultImages", Reason: "must be >= 1"})
	}
	if c.MaxPrintCount < 1 {
		errs = append(errs, &ValidationError{Field: "maxPrintCount", Reason: "must be >= 1"})
	}
	if c.CaptureTimeout <= 0 {
		errs = append(errs, &ValidationError{Field: "captureTimeout", Reason: "must be positive"})
	}

	return errors.Join(errs...)
}
