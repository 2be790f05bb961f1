// SPDX-License-Identifier: MIT

// Package compose builds the strip and print sheet artifacts. Rendering is
// a pure function of the input files and layout: identical inputs produce
// byte-identical JPEG output, which keeps the pipeline testable without a
// camera.
package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // logo assets may be PNG
	"os"
)

// jpegQuality is fixed so that encoding stays deterministic across runs.
const jpegQuality = 95

// Error is a composition failure. Any Error cancels the active session.
type Error struct {
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("compose: %s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("compose: %s failed", e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

// StripLayout describes the geometry of the photo strip. The defaults
// produce a 600x1596 strip: three 576x384 photo tiles plus the logo tile,
// separated by 12px padding.
type StripLayout struct {
	PhotoWidth  int
	PhotoHeight int
	Padding     int
	Background  color.RGBA
	LogoPath    string
}

// DefaultStripLayout returns the production strip geometry.
func DefaultStripLayout(logoPath string) StripLayout {
	return StripLayout{
		PhotoWidth:  576,
		PhotoHeight: 384,
		Padding:     12,
		Background:  color.RGBA{R: 255, G: 255, B: 255, A: 255},
		LogoPath:    logoPath,
	}
}

// Size returns the strip dimensions for n photos (the logo is an extra tile).
func (l StripLayout) Size(photos int) (w, h int) {
	tiles := photos + 1
	w = l.PhotoWidth + 2*l.Padding
	h = tiles*l.PhotoHeight + (tiles+1)*l.Padding
	return w, h
}

// PrintLayout describes the geometry of the printer-ready sheet: two strips
// side by side on a 1200x1800 canvas at 300 DPI, with a text box under each.
type PrintLayout struct {
	CanvasWidth  int
	CanvasHeight int
	DPI          int
	StripWidth   int
	StripHeight  int
	Background   color.RGBA

	// Text box under each strip, aligned with the strip's inner padding.
	TextBoxWidth  int
	TextBoxHeight int
	TextTopY      int
	TextColor     color.RGBA
	LineSpacing   int

	InfoLine string
	LinkLine string
}

// DefaultPrintLayout returns the production print sheet geometry for strips
// of the given size.
func DefaultPrintLayout(stripW, stripH int, infoLine, linkLine string) PrintLayout {
	return PrintLayout{
		CanvasWidth:   1200,
		CanvasHeight:  1800,
		DPI:           300,
		StripWidth:    stripW,
		StripHeight:   stripH,
		Background:    color.RGBA{R: 255, G: 255, B: 255, A: 255},
		TextBoxWidth:  576,
		TextBoxHeight: 192,
		TextTopY:      stripH,
		TextColor:     color.RGBA{R: 40, G: 40, B: 40, A: 255},
		LineSpacing:   4,
		InfoLine:      infoLine,
		LinkLine:      linkLine,
	}
}

// EncodeJPEG encodes img with the fixed quality setting.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, &Error{Op: "encode", Detail: "jpeg encoding failed", Err: err}
	}
	return buf.Bytes(), nil
}

// loadImage decodes the image file at path.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Op: "load", Detail: fmt.Sprintf("cannot open %s", path), Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &Error{Op: "load", Detail: fmt.Sprintf("cannot decode %s", path), Err: err}
	}
	return img, nil
}
