// SPDX-License-Identifier: MIT

// Package camera defines the camera gateway port and its error taxonomy.
// The production implementation shells out to the gphoto2 CLI; tests and
// development machines use the in-process fake.
package camera

import (
	"context"
	"fmt"
)

// Kind classifies camera failures into the closed taxonomy the controller
// and health monitor act on.
type Kind string

const (
	// NotDetected means the camera is not connected or not responding at all.
	NotDetected Kind = "camera_not_detected"
	// CaptureFailed means the camera was reachable but the capture did not
	// produce a usable photo.
	CaptureFailed Kind = "camera_capture_failed"
	// Timeout means the capture exceeded its bounded duration.
	Timeout Kind = "camera_timeout"
)

// Error is a classified camera failure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("camera: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("camera: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Gateway is the narrow port the controller drives. Capture writes a photo
// to destPath or fails with *Error; Preview writes a single low-resolution
// viewfinder frame without actuating the shutter; Probe is side-effect-free
// and reports whether the device is currently usable.
type Gateway interface {
	Capture(ctx context.Context, destPath string) error
	Preview(ctx context.Context, destPath string) error
	Probe(ctx context.Context) error
}
