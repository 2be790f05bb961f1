// SPDX-License-Identifier: MIT

package booth_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/boothworks/boothd/internal/booth"
	"github.com/boothworks/boothd/internal/camera"
	"github.com/boothworks/boothd/internal/health"
	"github.com/boothworks/boothd/internal/printer"
	"github.com/boothworks/boothd/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeLogo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logo.jpg")
	img := image.NewRGBA(image.Rect(0, 0, 200, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 200; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 230, G: 230, B: 230, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	return path
}

func testSettings(t *testing.T) booth.Settings {
	return booth.Settings{
		CountdownSeconds: 1,
		DefaultImages:    3,
		MaxPrintCount:    10,
		LogoPath:         writeLogo(t),
		AlbumInfoLine:    "Find your photos online",
		AlbumLinkLine:    "booth.example/album",
	}
}

func newController(t *testing.T, cam camera.Gateway, prn printer.Spooler, settings booth.Settings, opts ...booth.Option) (*booth.Controller, *store.Store, *health.Registry) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	registry := health.NewRegistry()

	opts = append([]booth.Option{booth.WithTick(time.Millisecond)}, opts...)
	c := booth.New(booth.Deps{
		Camera:  cam,
		Printer: prn,
		Store:   st,
		Health:  registry,
	}, settings, opts...)
	t.Cleanup(c.Close)
	return c, st, registry
}

func waitState(t *testing.T, c *booth.Controller, want booth.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status().State == want
	}, 5*time.Second, time.Millisecond, "controller did not reach state %s", want)
}

func TestFullSessionFlow(t *testing.T) {
	cam := &camera.Fake{}
	prn := &printer.Fake{}
	c, st, registry := newController(t, cam, prn, testSettings(t))

	status, err := c.StartSession(booth.StartRequest{PrintCount: 2})
	require.NoError(t, err)
	assert.Equal(t, booth.StateReadyForPhoto, status.State)
	assert.Equal(t, 3, status.TotalPhotos)
	assert.NotEmpty(t, status.SessionID)

	for i := 1; i <= 3; i++ {
		waitState(t, c, booth.StateReadyForPhoto)
		status, err = c.TakePhoto()
		require.NoError(t, err)
		assert.Equal(t, booth.StateCountdown, status.State)
	}
	waitState(t, c, booth.StateIdle)

	final := c.Status()
	assert.Nil(t, final.Error)
	assert.Equal(t, 3, cam.Captures())
	assert.Len(t, prn.Jobs(), 2)

	latest := st.LatestStrip()
	require.NotEmpty(t, latest)
	stripPath := filepath.Join(st.SessionsRoot(), filepath.FromSlash(latest))
	assert.FileExists(t, stripPath)
	assert.FileExists(t, filepath.Join(filepath.Dir(stripPath), "print.jpg"))

	assert.Equal(t, health.LevelOK, registry.Summary().Level)
}

func TestStartSessionConflict(t *testing.T) {
	c, _, _ := newController(t, &camera.Fake{}, &printer.Fake{}, testSettings(t))

	_, err := c.StartSession(booth.StartRequest{PrintCount: 1})
	require.NoError(t, err)

	_, err = c.StartSession(booth.StartRequest{PrintCount: 1})
	assert.ErrorIs(t, err, booth.ErrSessionConflict)
}

func TestOnlyOneConcurrentStartWins(t *testing.T) {
	c, _, _ := newController(t, &camera.Fake{}, &printer.Fake{}, testSettings(t))

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.StartSession(booth.StartRequest{PrintCount: 1})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, booth.ErrSessionConflict)
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestTakePhotoWithoutSession(t *testing.T) {
	c, _, _ := newController(t, &camera.Fake{}, &printer.Fake{}, testSettings(t))

	_, err := c.TakePhoto()
	assert.ErrorIs(t, err, booth.ErrSessionConflict)
}

func TestDuplicateTakePhotoRejected(t *testing.T) {
	settings := testSettings(t)
	settings.CountdownSeconds = 3
	c, _, _ := newController(t, &camera.Fake{Delay: 50 * time.Millisecond}, &printer.Fake{}, settings)

	_, err := c.StartSession(booth.StartRequest{PrintCount: 1, ImageCount: 1})
	require.NoError(t, err)

	_, err = c.TakePhoto()
	require.NoError(t, err)

	// The countdown or capture is now underway; a second trigger must be
	// rejected, never queued.
	_, err = c.TakePhoto()
	assert.ErrorIs(t, err, booth.ErrSessionConflict)

	waitState(t, c, booth.StateIdle)
}

func TestStartSessionValidation(t *testing.T) {
	c, _, _ := newController(t, &camera.Fake{}, &printer.Fake{}, testSettings(t))

	_, err := c.StartSession(booth.StartRequest{PrintCount: 0})
	assert.ErrorIs(t, err, booth.ErrInvalidRequest)

	_, err = c.StartSession(booth.StartRequest{PrintCount: 11})
	assert.ErrorIs(t, err, booth.ErrInvalidRequest)

	_, err = c.StartSession(booth.StartRequest{PrintCount: 1, ImageCount: -1})
	assert.ErrorIs(t, err, booth.ErrInvalidRequest)

	// Rejections have no side effect: a valid start still succeeds.
	_, err = c.StartSession(booth.StartRequest{PrintCount: 1})
	assert.NoError(t, err)
}

func TestInvalidConfigBlocksStart(t *testing.T) {
	cfgErr := assert.AnError
	c, _, registry := newController(t, &camera.Fake{}, &printer.Fake{}, testSettings(t),
		booth.WithConfigError(cfgErr))

	_, err := c.StartSession(booth.StartRequest{PrintCount: 1})
	assert.ErrorIs(t, err, booth.ErrConfigInvalid)
	assert.Equal(t, health.LevelError, registry.Summary().Level)
}

func TestConfigErrorClearsWithoutRestart(t *testing.T) {
	c, _, registry := newController(t, &camera.Fake{}, &printer.Fake{}, testSettings(t),
		booth.WithConfigError(assert.AnError))

	_, err := c.StartSession(booth.StartRequest{PrintCount: 1})
	require.ErrorIs(t, err, booth.ErrConfigInvalid)
	require.Equal(t, health.LevelError, registry.Summary().Level)

	// A successful config reload clears the fault and re-enables starts.
	c.SetConfigError(nil)
	assert.Equal(t, health.LevelOK, registry.Summary().Level)

	_, err = c.StartSession(booth.StartRequest{PrintCount: 1})
	assert.NoError(t, err)

	// A fresh config problem can be raised again later.
	c.SetConfigError(assert.AnError)
	assert.Equal(t, health.LevelError, registry.Summary().Level)
}

func TestCameraFailureCancelsSession(t *testing.T) {
	cam := &camera.Fake{FailOn: 2}
	c, st, registry := newController(t, cam, &printer.Fake{}, testSettings(t))

	_, err := c.StartSession(booth.StartRequest{PrintCount: 1})
	require.NoError(t, err)

	waitState(t, c, booth.StateReadyForPhoto)
	_, err = c.TakePhoto()
	require.NoError(t, err)
	waitState(t, c, booth.StateReadyForPhoto)

	_, err = c.TakePhoto()
	require.NoError(t, err)
	waitState(t, c, booth.StateIdle)

	status := c.Status()
	require.NotNil(t, status.Error)
	assert.Contains(t, status.Error.Message, "photo 2 of 3")
	assert.Contains(t, status.Error.Message, "Session was cancelled")

	// Photo 1 survives on disk, no strip was produced.
	assert.Empty(t, st.LatestStrip())
	var photos []string
	err = filepath.Walk(st.SessionsRoot(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".jpg" {
			photos = append(photos, path)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, photos, 1)

	assert.Equal(t, health.LevelError, registry.Summary().Level)

	// Passive recovery: the next session start clears the surfaced error.
	status, err = c.StartSession(booth.StartRequest{PrintCount: 1})
	require.NoError(t, err)
	assert.Nil(t, status.Error)
}

func TestPrinterFailureDoesNotCancelSession(t *testing.T) {
	prn := &printer.Fake{SubmitErr: &printer.Error{Kind: printer.Unavailable, Detail: "no queue"}}
	c, st, registry := newController(t, &camera.Fake{}, prn, testSettings(t))

	_, err := c.StartSession(booth.StartRequest{PrintCount: 1, ImageCount: 1})
	require.NoError(t, err)
	_, err = c.TakePhoto()
	require.NoError(t, err)
	waitState(t, c, booth.StateIdle)

	// The session completed: strip exists, no session error, health is only
	// degraded to WARNING.
	status := c.Status()
	assert.Nil(t, status.Error)
	assert.NotEmpty(t, st.LatestStrip())

	summary := registry.Summary()
	assert.Equal(t, health.LevelWarning, summary.Level)
	assert.NotEmpty(t, summary.Instructions)
}

func TestCompositionFailureCancelsSession(t *testing.T) {
	settings := testSettings(t)
	settings.LogoPath = filepath.Join(t.TempDir(), "missing.png")
	c, st, registry := newController(t, &camera.Fake{}, &printer.Fake{}, settings)

	_, err := c.StartSession(booth.StartRequest{PrintCount: 1, ImageCount: 1})
	require.NoError(t, err)
	_, err = c.TakePhoto()
	require.NoError(t, err)
	waitState(t, c, booth.StateIdle)

	status := c.Status()
	require.NotNil(t, status.Error)
	assert.Equal(t, "composition_failed", status.Error.Kind)
	assert.Empty(t, st.LatestStrip())
	assert.Equal(t, health.LevelError, registry.Summary().Level)
}

func TestTryExclusive(t *testing.T) {
	settings := testSettings(t)
	settings.CountdownSeconds = 0
	cam := &camera.Fake{Delay: 150 * time.Millisecond}
	c, _, _ := newController(t, cam, &printer.Fake{}, settings)

	// Idle: probing is allowed.
	assert.True(t, c.TryExclusive(func() {}))

	_, err := c.StartSession(booth.StartRequest{PrintCount: 1, ImageCount: 1})
	require.NoError(t, err)

	// Waiting for a photo: probing is still allowed.
	assert.True(t, c.TryExclusive(func() {}))

	_, err = c.TakePhoto()
	require.NoError(t, err)
	waitState(t, c, booth.StateCapturing)

	// Capture in flight: the probe must be refused, not delayed.
	assert.False(t, c.TryExclusive(func() {}))

	waitState(t, c, booth.StateIdle)
	assert.True(t, c.TryExclusive(func() {}))
}

func TestLivePreviewReturnsFrameWhenIdle(t *testing.T) {
	c, _, _ := newController(t, &camera.Fake{}, &printer.Fake{}, testSettings(t))

	frame, err := c.LivePreview(context.Background())
	require.NoError(t, err)

	_, format, err := image.Decode(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestLivePreviewRefusedDuringCapture(t *testing.T) {
	settings := testSettings(t)
	settings.CountdownSeconds = 0
	c, _, _ := newController(t, &camera.Fake{Delay: 150 * time.Millisecond}, &printer.Fake{}, settings)

	_, err := c.StartSession(booth.StartRequest{PrintCount: 1, ImageCount: 1})
	require.NoError(t, err)
	_, err = c.TakePhoto()
	require.NoError(t, err)
	waitState(t, c, booth.StateCapturing)

	// The viewfinder yields to the guest: busy hardware is a conflict,
	// never a wait.
	_, err = c.LivePreview(context.Background())
	assert.ErrorIs(t, err, booth.ErrSessionConflict)

	waitState(t, c, booth.StateIdle)
	_, err = c.LivePreview(context.Background())
	assert.NoError(t, err)
}

func TestLivePreviewCameraError(t *testing.T) {
	cam := &camera.Fake{PreviewErr: &camera.Error{Kind: camera.NotDetected, Detail: "unplugged"}}
	c, _, _ := newController(t, cam, &printer.Fake{}, testSettings(t))

	_, err := c.LivePreview(context.Background())
	var cerr *camera.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, camera.NotDetected, cerr.Kind)
}

// probeCountingCamera records probe calls so tests can assert that the
// monitor never probes while a capture is in flight.
type probeCountingCamera struct {
	camera.Fake
	mu     sync.Mutex
	probes int
}

func (p *probeCountingCamera) Probe(ctx context.Context) error {
	p.mu.Lock()
	p.probes++
	p.mu.Unlock()
	return p.Fake.Probe(ctx)
}

func (p *probeCountingCamera) Probes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes
}

// probeCountingSpooler records printer probe calls the same way.
type probeCountingSpooler struct {
	printer.Fake
	mu     sync.Mutex
	probes int
}

func (p *probeCountingSpooler) Probe(ctx context.Context) error {
	p.mu.Lock()
	p.probes++
	p.mu.Unlock()
	return p.Fake.Probe(ctx)
}

func (p *probeCountingSpooler) Probes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes
}

func TestProbeNeverOverlapsCapture(t *testing.T) {
	settings := testSettings(t)
	settings.CountdownSeconds = 0
	cam := &probeCountingCamera{Fake: camera.Fake{Delay: 100 * time.Millisecond}}
	prn := &probeCountingSpooler{}
	c, _, registry := newController(t, cam, prn, settings)

	monitor := health.NewMonitor(registry, cam, prn, c, time.Millisecond)

	_, err := c.StartSession(booth.StartRequest{PrintCount: 1, ImageCount: 1})
	require.NoError(t, err)
	_, err = c.TakePhoto()
	require.NoError(t, err)
	waitState(t, c, booth.StateCapturing)

	// Hammer the sampler while the capture is underway; the guard must
	// refuse every round, for the printer probe as much as the camera one.
	for i := 0; i < 20; i++ {
		monitor.Sample(context.Background())
	}
	assert.Zero(t, cam.Probes())
	assert.Zero(t, prn.Probes())

	waitState(t, c, booth.StateIdle)
	monitor.Sample(context.Background())
	assert.Equal(t, 1, cam.Probes())
	assert.Equal(t, 1, prn.Probes())
}

func TestUpdateSettingsAppliesToNextSession(t *testing.T) {
	settings := testSettings(t)
	c, _, _ := newController(t, &camera.Fake{}, &printer.Fake{}, settings)

	settings.DefaultImages = 5
	c.UpdateSettings(settings)

	status, err := c.StartSession(booth.StartRequest{PrintCount: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, status.TotalPhotos)
}

func TestLedgerRecordsCompletedSession(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)
	ledger, err := store.OpenLedger(filepath.Join(dir, "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	registry := health.NewRegistry()
	c := booth.New(booth.Deps{
		Camera:  &camera.Fake{},
		Printer: &printer.Fake{},
		Store:   st,
		Ledger:  ledger,
		Health:  registry,
	}, testSettings(t), booth.WithTick(time.Millisecond))
	t.Cleanup(c.Close)

	status, err := c.StartSession(booth.StartRequest{PrintCount: 2, ImageCount: 1})
	require.NoError(t, err)
	sessionID := status.SessionID
	_, err = c.TakePhoto()
	require.NoError(t, err)
	waitState(t, c, booth.StateIdle)
	require.NotEmpty(t, st.LatestStrip())

	// The printed album code is the first eight characters of the session
	// ID with the dashes stripped, uppercased.
	code := strings.ToUpper(strings.ReplaceAll(sessionID, "-", ""))[:8]

	entry, err := ledger.Lookup(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, sessionID, entry.ID)
	assert.Equal(t, code, entry.AlbumCode)
	assert.Equal(t, st.LatestStrip(), entry.StripPath)
	assert.Equal(t, 1, entry.Photos)
	assert.Equal(t, 2, entry.PrintCount)
	assert.Equal(t, time.Now().Format("2006-01-02"), entry.Date)

	// Exactly one row per session: the id is a primary key, so a second
	// record attempt for the same session is rejected.
	assert.Error(t, ledger.Record(context.Background(), entry))
}
