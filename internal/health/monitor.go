// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"time"

	"github.com/boothworks/boothd/internal/camera"
	"github.com/boothworks/boothd/internal/log"
	"github.com/boothworks/boothd/internal/printer"
)

// Guard grants mutually exclusive hardware access. TryExclusive runs fn
// only when no hardware operation is in flight and the controller is in a
// state where probing is safe; it never waits.
type Guard interface {
	TryExclusive(fn func()) bool
}

// Monitor periodically probes the camera and printer gateways and updates
// the fault registry. It never mutates session state and never interleaves
// with an active capture: probes run only when the guard is free.
type Monitor struct {
	registry *Registry
	camera   camera.Gateway
	printer  printer.Spooler
	guard    Guard
	interval time.Duration
}

// NewMonitor creates a monitor sampling on the given interval.
func NewMonitor(registry *Registry, cam camera.Gateway, spooler printer.Spooler, guard Guard, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Monitor{
		registry: registry,
		camera:   cam,
		printer:  spooler,
		guard:    guard,
		interval: interval,
	}
}

// Run blocks sampling until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sample(ctx)
		}
	}
}

// Sample runs one probe round. It is a no-op when the hardware guard is
// busy; the next tick retries. Exported for tests and for a startup probe.
func (m *Monitor) Sample(ctx context.Context) {
	logger := log.WithComponent("health")

	// Capture, composition or print handoff in flight refuses the guard;
	// the whole round is skipped and the next tick retries.
	m.guard.TryExclusive(func() {
		if err := m.camera.Probe(ctx); err != nil {
			logger.Debug().Err(err).
				Str(log.FieldEvent, "probe.camera_failed").
				Msg("camera probe failed")
			m.registry.Set(Fault{
				Source:       SourceCamera,
				Level:        LevelError,
				Message:      "Camera not detected",
				Instructions: CameraInstructions,
			})
		} else {
			m.registry.Clear(SourceCamera)
		}

		// The printer probe stays inside the exclusive section too: a fast
		// session could otherwise reach its lp submission while a slow
		// lpstat is still in flight.
		if err := m.printer.Probe(ctx); err != nil {
			logger.Debug().Err(err).
				Str(log.FieldEvent, "probe.printer_failed").
				Msg("printer probe failed")
			m.registry.Set(Fault{
				Source:       SourcePrinter,
				Level:        LevelWarning,
				Message:      "Printer is not reachable",
				Instructions: PrinterInstructions,
			})
		} else {
			m.registry.Clear(SourcePrinter)
		}
	})
}
