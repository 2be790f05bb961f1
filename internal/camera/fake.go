// SPDX-License-Identifier: MIT

package camera

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sync"
	"time"
)

// Fake is an in-process camera for development and tests. Each capture
// writes a small solid-color JPEG so the downstream composition pipeline
// has real files to work with.
type Fake struct {
	// Delay simulates capture latency.
	Delay time.Duration
	// FailOn makes the Nth capture (1-based) fail with FailErr. 0 disables.
	FailOn int
	// FailErr is returned by the failing capture; defaults to NotDetected.
	FailErr error
	// ProbeErr, when set, is returned by Probe.
	ProbeErr error
	// PreviewErr, when set, is returned by Preview.
	PreviewErr error

	mu       sync.Mutex
	captures int
}

// Capture writes a generated JPEG to destPath.
func (f *Fake) Capture(ctx context.Context, destPath string) error {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return &Error{Kind: Timeout, Detail: "fake capture cancelled", Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	f.captures++
	n := f.captures
	f.mu.Unlock()

	if f.FailOn != 0 && n == f.FailOn {
		if f.FailErr != nil {
			return f.FailErr
		}
		return &Error{Kind: NotDetected, Detail: "fake camera unplugged"}
	}

	img := image.NewRGBA(image.Rect(0, 0, 640, 427))
	shade := uint8(40 * (n % 7)) // vary shots so strips are visually distinct
	for y := 0; y < 427; y++ {
		for x := 0; x < 640; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 80 + shade, G: 120, B: 200 - shade, A: 255})
		}
	}

	file, err := os.Create(destPath)
	if err != nil {
		return &Error{Kind: CaptureFailed, Detail: "cannot create photo file", Err: err}
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		return &Error{Kind: CaptureFailed, Detail: "cannot encode photo", Err: err}
	}
	return nil
}

// Preview writes a small generated viewfinder frame to destPath.
func (f *Fake) Preview(_ context.Context, destPath string) error {
	if f.PreviewErr != nil {
		return f.PreviewErr
	}

	img := image.NewRGBA(image.Rect(0, 0, 320, 213))
	for y := 0; y < 213; y++ {
		for x := 0; x < 320; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 60, G: 60, B: 70, A: 255})
		}
	}

	file, err := os.Create(destPath)
	if err != nil {
		return &Error{Kind: CaptureFailed, Detail: "cannot create preview file", Err: err}
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 70}); err != nil {
		return &Error{Kind: CaptureFailed, Detail: "cannot encode preview", Err: err}
	}
	return nil
}

// Probe reports the configured probe result.
func (f *Fake) Probe(_ context.Context) error {
	return f.ProbeErr
}

// Captures returns how many captures were attempted.
func (f *Fake) Captures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}
