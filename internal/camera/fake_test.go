// SPDX-License-Identifier: MIT

package camera

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeCaptureWritesDecodableJPEG(t *testing.T) {
	f := &Fake{}
	dest := filepath.Join(t.TempDir(), "photo_1.jpg")

	require.NoError(t, f.Capture(context.Background(), dest))
	assert.Equal(t, 1, f.Captures())

	file, err := os.Open(dest)
	require.NoError(t, err)
	defer file.Close()

	img, format, err := image.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 640, img.Bounds().Dx())
}

func TestFakeFailOn(t *testing.T) {
	f := &Fake{FailOn: 2}
	dir := t.TempDir()

	require.NoError(t, f.Capture(context.Background(), filepath.Join(dir, "p1.jpg")))

	err := f.Capture(context.Background(), filepath.Join(dir, "p2.jpg"))
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, NotDetected, cerr.Kind)
	assert.NoFileExists(t, filepath.Join(dir, "p2.jpg"))

	// Only the Nth capture fails; later ones succeed again.
	require.NoError(t, f.Capture(context.Background(), filepath.Join(dir, "p3.jpg")))
	assert.Equal(t, 3, f.Captures())
}

func TestFakePreviewWritesDecodableJPEG(t *testing.T) {
	f := &Fake{}
	dest := filepath.Join(t.TempDir(), "frame.jpg")

	require.NoError(t, f.Preview(context.Background(), dest))

	file, err := os.Open(dest)
	require.NoError(t, err)
	defer file.Close()

	_, format, err := image.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	// Previews do not count as captures.
	assert.Equal(t, 0, f.Captures())
}

func TestFakePreviewError(t *testing.T) {
	wantErr := &Error{Kind: NotDetected, Detail: "unplugged"}
	f := &Fake{PreviewErr: wantErr}

	err := f.Preview(context.Background(), filepath.Join(t.TempDir(), "frame.jpg"))
	assert.ErrorIs(t, err, wantErr)
}
