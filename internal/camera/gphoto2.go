// SPDX-License-Identifier: MIT

package camera

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/boothworks/boothd/internal/log"
)

// GPhoto2 drives a USB camera through the gphoto2 command line tool.
type GPhoto2 struct {
	Bin            string
	CaptureTimeout time.Duration
	ProbeTimeout   time.Duration
}

// NewGPhoto2 creates a gateway using bin (default "gphoto2").
func NewGPhoto2(bin string, captureTimeout, probeTimeout time.Duration) *GPhoto2 {
	if bin == "" {
		bin = "gphoto2"
	}
	if captureTimeout <= 0 {
		captureTimeout = 10 * time.Second
	}
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &GPhoto2{Bin: bin, CaptureTimeout: captureTimeout, ProbeTimeout: probeTimeout}
}

// Capture triggers a capture-and-download to destPath. The call is bounded
// by CaptureTimeout; exceeding it yields a Timeout error.
func (g *GPhoto2) Capture(ctx context.Context, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, g.CaptureTimeout)
	defer cancel()

	logger := log.WithComponentFromContext(ctx, "camera")

	// #nosec G204 -- Bin comes from operator configuration, not request input
	cmd := exec.CommandContext(ctx, g.Bin,
		"--capture-image-and-download",
		"--force-overwrite",
		"--filename", destPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		cerr := classifyExecErr(ctx, err, stderr.String())
		logger.Error().Err(cerr).
			Str(log.FieldEvent, "capture.failed").
			Dur("duration", time.Since(start)).
			Msg("gphoto2 capture failed")
		return cerr
	}

	if _, statErr := os.Stat(destPath); statErr != nil {
		return &Error{
			Kind:   CaptureFailed,
			Detail: "gphoto2 reported success but no file was created",
			Err:    statErr,
		}
	}

	logger.Debug().
		Str(log.FieldEvent, "capture.completed").
		Str(log.FieldPhotoPath, destPath).
		Dur("duration", time.Since(start)).
		Msg("photo captured")
	return nil
}

// Preview downloads one viewfinder frame to destPath. Previews share the
// probe timeout: they are polled by a UI and must fail fast rather than
// hold the device.
func (g *GPhoto2) Preview(ctx context.Context, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, g.ProbeTimeout)
	defer cancel()

	// #nosec G204 -- Bin comes from operator configuration, not request input
	cmd := exec.CommandContext(ctx, g.Bin,
		"--capture-preview",
		"--force-overwrite",
		"--filename", destPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return classifyExecErr(ctx, err, stderr.String())
	}
	if _, statErr := os.Stat(destPath); statErr != nil {
		return &Error{
			Kind:   CaptureFailed,
			Detail: "gphoto2 reported success but no preview frame was created",
			Err:    statErr,
		}
	}
	return nil
}

// Probe checks that the camera answers a summary request. It never mutates
// device state.
func (g *GPhoto2) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.ProbeTimeout)
	defer cancel()

	// #nosec G204 -- Bin comes from operator configuration, not request input
	cmd := exec.CommandContext(ctx, g.Bin, "--summary")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &Error{
			Kind:   NotDetected,
			Detail: firstLine(stderr.String()),
			Err:    err,
		}
	}
	return nil
}

// classifyExecErr maps a gphoto2 process failure onto the error taxonomy.
func classifyExecErr(ctx context.Context, err error, stderr string) *Error {
	detail := firstLine(stderr)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: Timeout, Detail: "capture timed out", Err: err}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return &Error{Kind: NotDetected, Detail: "gphoto2 binary not found", Err: err}
	}
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "no camera found") ||
		strings.Contains(lower, "could not claim the usb device") ||
		strings.Contains(lower, "unknown model") {
		return &Error{Kind: NotDetected, Detail: detail, Err: err}
	}
	return &Error{Kind: CaptureFailed, Detail: detail, Err: err}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
