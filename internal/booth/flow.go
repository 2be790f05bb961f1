// SPDX-License-Identifier: MIT

package booth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/boothworks/boothd/internal/camera"
	"github.com/boothworks/boothd/internal/compose"
	"github.com/boothworks/boothd/internal/health"
	"github.com/boothworks/boothd/internal/log"
	"github.com/boothworks/boothd/internal/metrics"
	"github.com/boothworks/boothd/internal/printer"
	"github.com/boothworks/boothd/internal/store"
)

// StartSession validates and executes the StartSession command. Rejections
// (conflict, invalid request, invalid config) happen synchronously with no
// side effect; acceptance creates the session directory and publishes
// READY_FOR_PHOTO.
func (c *Controller) StartSession(req StartRequest) (Status, error) {
	if err := c.configError(); err != nil {
		return c.Status(), fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	settings := c.currentSettings()
	if req.ImageCount == 0 {
		req.ImageCount = settings.DefaultImages
	}
	if req.PrintCount < 1 {
		metrics.IncCommandRejected("start_session", "invalid")
		return c.Status(), fmt.Errorf("%w: printCount must be >= 1", ErrInvalidRequest)
	}
	if req.PrintCount > settings.MaxPrintCount {
		metrics.IncCommandRejected("start_session", "invalid")
		return c.Status(), fmt.Errorf("%w: printCount must be <= %d", ErrInvalidRequest, settings.MaxPrintCount)
	}
	if req.ImageCount < 1 {
		metrics.IncCommandRejected("start_session", "invalid")
		return c.Status(), fmt.Errorf("%w: imageCount must be >= 1", ErrInvalidRequest)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		metrics.IncCommandRejected("start_session", "conflict")
		return c.statusLocked(), fmt.Errorf("%w: session already active", ErrSessionConflict)
	}

	id := newSessionID()
	now := time.Now()
	dirs, err := c.deps.Store.CreateSession(id, now)
	if err != nil {
		return c.statusLocked(), fmt.Errorf("start session: %w", err)
	}

	// The creation time also partitions the session directory; the ledger
	// row must carry the same date even when the session spans midnight.
	c.sess = &session{
		id:         id,
		albumCode:  albumCode(id),
		createdAt:  now,
		imageCount: req.ImageCount,
		printCount: req.PrintCount,
		settings:   settings,
		dirs:       dirs,
	}
	c.lastErr = nil
	c.remain = 0
	c.setStateLocked(StateReadyForPhoto)

	metrics.IncSessionStarted()
	logger := log.WithComponent("booth")
	logger.Info().
		Str(log.FieldEvent, "session.started").
		Str(log.FieldSessionID, id).
		Str(log.FieldAlbumCode, c.sess.albumCode).
		Int(log.FieldPhotoTotal, req.ImageCount).
		Int(log.FieldPrintCopies, req.PrintCount).
		Msg("session started")

	return c.statusLocked(), nil
}

// TakePhoto validates and executes the TakePhoto command. A duplicate
// TakePhoto while a countdown or capture is underway is rejected, never
// queued.
func (c *Controller) TakePhoto() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReadyForPhoto {
		metrics.IncCommandRejected("take_photo", "conflict")
		return c.statusLocked(), fmt.Errorf("%w: not ready for a photo", ErrSessionConflict)
	}

	c.remain = c.sess.settings.CountdownSeconds
	c.setStateLocked(StateCountdown)

	c.workers.Add(1)
	go c.captureWorker(c.sess)

	return c.statusLocked(), nil
}

// captureWorker runs the countdown, the capture, and, after the last
// photo, the finish sequence. It is the single hardware lane: exactly one
// instance exists per accepted TakePhoto, and a new one can only be spawned
// after this one has published READY_FOR_PHOTO or IDLE.
func (c *Controller) captureWorker(sess *session) {
	defer c.workers.Done()

	// The session ID travels via context so camera and printer log lines
	// correlate with the session that triggered them.
	ctx := log.ContextWithSessionID(c.runCtx, sess.id)
	logger := log.WithComponentFromContext(ctx, "booth")

	// Countdown, one tick per second. Not client-cancellable; only daemon
	// shutdown interrupts it.
	for {
		c.mu.Lock()
		remaining := c.remain
		c.mu.Unlock()
		if remaining <= 0 {
			break
		}
		select {
		case <-c.runCtx.Done():
			return
		case <-time.After(c.tick):
		}
		c.mu.Lock()
		c.remain--
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.setStateLocked(StateCapturing)
	photoIndex := len(sess.photos) + 1
	c.mu.Unlock()

	photoPath := sess.dirs.PhotoPath(photoIndex)

	c.deviceMu.Lock()
	start := time.Now()
	err := c.deps.Camera.Capture(ctx, photoPath)
	c.deviceMu.Unlock()
	metrics.ObserveCaptureDuration(time.Since(start).Seconds())

	if err != nil {
		metrics.IncPhotoCaptured("failure")
		c.cancelSession(sess, captureFailure(err, photoIndex, sess.imageCount), "capture")
		return
	}

	metrics.IncPhotoCaptured("success")
	c.deps.Health.Clear(health.SourceCamera)

	c.mu.Lock()
	sess.photos = append(sess.photos, photoPath)
	taken := len(sess.photos)
	if taken < sess.imageCount {
		c.setStateLocked(StateReadyForPhoto)
		c.mu.Unlock()
		logger.Info().
			Str(log.FieldEvent, "capture.completed").
			Int(log.FieldPhotoIndex, taken).
			Int(log.FieldPhotoTotal, sess.imageCount).
			Msg("photo captured, ready for next")
		return
	}
	c.mu.Unlock()

	c.finishSession(ctx, sess)
}

// finishSession composes the artifacts and hands the sheet to the spooler.
// Composition failures cancel the session; printer failures do not, the
// photographic work is already complete.
func (c *Controller) finishSession(ctx context.Context, sess *session) {
	logger := log.WithComponentFromContext(ctx, "booth")

	c.mu.Lock()
	c.setStateLocked(StateProcessing)
	c.mu.Unlock()

	start := time.Now()
	stripLayout := compose.DefaultStripLayout(sess.settings.LogoPath)
	strip, err := compose.RenderStrip(sess.photos, stripLayout)
	if err != nil {
		c.compositionFailed(sess, err)
		return
	}
	stripBytes, err := compose.EncodeJPEG(strip)
	if err != nil {
		c.compositionFailed(sess, err)
		return
	}
	if err := sess.dirs.WriteArtifact(sess.dirs.StripPath(), stripBytes); err != nil {
		c.compositionFailed(sess, err)
		return
	}

	stripW, stripH := stripLayout.Size(len(sess.photos))
	printLayout := compose.DefaultPrintLayout(stripW, stripH, sess.settings.AlbumInfoLine, sess.settings.AlbumLinkLine)
	sheet, err := compose.RenderPrintSheet(strip, printLayout, sess.albumCode)
	if err != nil {
		c.compositionFailed(sess, err)
		return
	}
	sheetBytes, err := compose.EncodeJPEG(sheet)
	if err != nil {
		c.compositionFailed(sess, err)
		return
	}
	if err := sess.dirs.WriteArtifact(sess.dirs.PrintPath(), sheetBytes); err != nil {
		c.compositionFailed(sess, err)
		return
	}
	metrics.ObserveCompositionDuration(time.Since(start).Seconds())
	c.deps.Health.Clear(health.SourceComposition)

	if rel, err := c.deps.Store.Rel(sess.dirs.StripPath()); err == nil {
		if err := c.deps.Store.SetLatestStrip(rel); err != nil {
			logger.Warn().Err(err).Msg("failed to persist latest strip pointer")
		}
	}

	c.recordLedger(ctx, sess, logger)

	c.mu.Lock()
	c.setStateLocked(StatePrinting)
	c.mu.Unlock()

	jobID, err := c.deps.Printer.Submit(ctx, sess.dirs.PrintPath(), sess.printCount, "booth_"+sess.albumCode)
	if err != nil {
		metrics.IncPrintJob("failure")
		c.deps.Health.Set(health.Fault{
			Source:       health.SourcePrinter,
			Level:        health.LevelWarning,
			Message:      printerFaultMessage(err),
			Instructions: health.PrinterInstructions,
		})
		logger.Error().Err(err).
			Str(log.FieldEvent, "print.failed").
			Msg("print submission failed; session completes anyway")
	} else {
		metrics.IncPrintJob("accepted")
		c.deps.Health.Clear(health.SourcePrinter)
		logger.Info().
			Str(log.FieldEvent, "session.completed").
			Str(log.FieldJobID, jobID).
			Str(log.FieldAlbumCode, sess.albumCode).
			Msg("session completed, print job handed to spooler")
	}

	c.mu.Lock()
	c.sess = nil
	c.remain = 0
	c.setStateLocked(StateIdle)
	c.mu.Unlock()
	metrics.IncSessionCompleted()
}

// cancelSession aborts the session, preserving photos already on disk.
func (c *Controller) cancelSession(sess *session, failure *Failure, stage string) {
	c.deps.Health.Set(health.Fault{
		Source:       faultSourceForStage(stage),
		Level:        health.LevelError,
		Message:      failure.Message,
		Instructions: instructionsForStage(stage),
	})

	c.mu.Lock()
	c.lastErr = failure
	c.sess = nil
	c.remain = 0
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	metrics.IncSessionCancelled(stage)
	logger := log.WithComponent("booth")
	logger.Error().
		Str(log.FieldEvent, "session.cancelled").
		Str(log.FieldSessionID, sess.id).
		Str("stage", stage).
		Str("reason", failure.Message).
		Msg("session cancelled")
}

func (c *Controller) compositionFailed(sess *session, err error) {
	c.cancelSession(sess, &Failure{
		Kind:    "composition_failed",
		Message: fmt.Sprintf("Could not create the photo strip: %v", err),
	}, "composition")
}

// recordLedger writes the completed session into the album-code ledger.
// Best effort: a ledger failure never cancels the session.
func (c *Controller) recordLedger(ctx context.Context, sess *session, logger zerolog.Logger) {
	if c.deps.Ledger == nil {
		return
	}
	rel, err := c.deps.Store.Rel(sess.dirs.StripPath())
	if err != nil {
		logger.Warn().Err(err).Msg("cannot derive relative strip path for ledger")
		return
	}
	entry := store.LedgerEntry{
		ID:         sess.id,
		Date:       sess.createdAt.Format("2006-01-02"),
		AlbumCode:  sess.albumCode,
		StripPath:  rel,
		Photos:     len(sess.photos),
		PrintCount: sess.printCount,
		CreatedAt:  sess.createdAt,
	}
	if err := c.deps.Ledger.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).
			Str(log.FieldAlbumCode, sess.albumCode).
			Msg("failed to record session in ledger")
	}
}

// captureFailure builds the operator-facing failure for a camera error,
// naming the photo that failed.
func captureFailure(err error, photoIndex, total int) *Failure {
	kind := string(camera.CaptureFailed)
	var cerr *camera.Error
	if errors.As(err, &cerr) {
		kind = string(cerr.Kind)
	}
	return &Failure{
		Kind: kind,
		Message: fmt.Sprintf("Camera disconnected during photo %d of %d. Session was cancelled. Please start again.",
			photoIndex, total),
	}
}

func printerFaultMessage(err error) string {
	var perr *printer.Error
	if errors.As(err, &perr) && perr.Kind == printer.Unavailable {
		return "Printer is not reachable"
	}
	return "Print job was rejected by the spooler"
}

func faultSourceForStage(stage string) health.Source {
	if stage == "composition" {
		return health.SourceComposition
	}
	return health.SourceCamera
}

func instructionsForStage(stage string) []string {
	if stage == "composition" {
		return health.CompositionInstructions
	}
	return health.CameraInstructions
}
