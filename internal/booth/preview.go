// SPDX-License-Identifier: MIT

package booth

import (
	"context"
	"fmt"
	"os"
)

// LivePreview captures one viewfinder frame and returns its JPEG bytes.
// Previews run only while the booth is idle or waiting for a photo and
// only when the device is free; a busy booth is a conflict, never a wait,
// so a polling UI can never delay a guest-triggered capture.
func (c *Controller) LivePreview(ctx context.Context) ([]byte, error) {
	var (
		frame []byte
		err   error
	)
	ran := c.TryExclusive(func() {
		frame, err = c.capturePreviewFrame(ctx)
	})
	if !ran {
		return nil, fmt.Errorf("%w: hardware busy", ErrSessionConflict)
	}
	return frame, err
}

// capturePreviewFrame round-trips a frame through a temp file because the
// camera gateway is file-based. The frame is ephemeral; it never lands in
// the session store.
func (c *Controller) capturePreviewFrame(ctx context.Context) ([]byte, error) {
	tmp, err := os.CreateTemp("", "boothd-preview-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	defer os.Remove(name)

	if err := c.deps.Camera.Preview(ctx, name); err != nil {
		return nil, err
	}
	frame, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("preview: read frame: %w", err)
	}
	return frame, nil
}
