// SPDX-License-Identifier: MIT

// Package health tracks hardware and configuration faults and derives the
// operator-facing tri-level summary. Recovery is passive: a later
// successful probe or session action clears the fault, no reset call exists.
package health

import (
	"sync"
	"time"

	"github.com/boothworks/boothd/internal/metrics"
)

// Level is the tri-state health level shown to operators.
type Level string

const (
	LevelOK      Level = "OK"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// severity orders levels for summary derivation.
func severity(l Level) int {
	switch l {
	case LevelError:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}

// Source identifies the subsystem a fault belongs to.
type Source string

const (
	SourceConfig      Source = "config"
	SourceCamera      Source = "camera"
	SourceComposition Source = "composition"
	SourcePrinter     Source = "printer"
)

// Fault is an active problem. Camera, config and composition faults are
// ERROR (they block or cancel sessions); printer faults are WARNING because
// the photographic work still completes.
type Fault struct {
	Source       Source
	Level        Level
	Message      string
	Instructions []string
	Since        time.Time
}

// Summary is the derived health report returned by GET /health.
type Summary struct {
	Level        Level    `json:"level"`
	Message      string   `json:"message,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
}

// Registry is the shared fault table written by the controller and the
// monitor and read by the API.
type Registry struct {
	mu     sync.Mutex
	faults map[Source]Fault
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{faults: make(map[Source]Fault)}
}

// Set records a fault. The first fault per source wins so the most specific
// message (e.g. "camera disconnected during photo 2 of 3") is not replaced
// by a later generic probe failure.
func (r *Registry) Set(f Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.faults[f.Source]; exists {
		return
	}
	if f.Since.IsZero() {
		f.Since = time.Now()
	}
	r.faults[f.Source] = f
	r.record()
}

// Clear removes the fault for source, if any.
func (r *Registry) Clear(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.faults, source)
	r.record()
}

// Summary derives the current report: the highest-severity fault provides
// message and instructions; no faults means OK with no instructions.
func (r *Registry) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	var worst *Fault
	for src := range r.faults {
		f := r.faults[src]
		if worst == nil || severity(f.Level) > severity(worst.Level) ||
			(severity(f.Level) == severity(worst.Level) && f.Since.Before(worst.Since)) {
			worst = &f
		}
	}
	if worst == nil {
		return Summary{Level: LevelOK}
	}
	return Summary{
		Level:        worst.Level,
		Message:      worst.Message,
		Instructions: worst.Instructions,
	}
}

// record refreshes the health level gauge. Callers must hold r.mu.
func (r *Registry) record() {
	level := 0
	for _, f := range r.faults {
		if s := severity(f.Level); s > level {
			level = s
		}
	}
	metrics.RecordHealthLevel(level)
}

// CameraInstructions are the remediation steps for camera faults.
var CameraInstructions = []string{
	"Check that the camera is powered on",
	"Check the USB cable",
	"Replace the camera battery if needed",
}

// PrinterInstructions are the remediation steps for printer faults.
var PrinterInstructions = []string{
	"Check that the printer is powered on",
	"Check paper and ink levels",
	"Check the printer queue in CUPS",
}

// ConfigInstructions are the remediation steps for configuration faults.
var ConfigInstructions = []string{
	"Fix the reported setting in the configuration file",
	"Reload or restart boothd",
}

// CompositionInstructions are the remediation steps for composition faults.
var CompositionInstructions = []string{
	"Check that the logo file exists and is a valid image",
	"Start a new session",
}
