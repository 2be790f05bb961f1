// SPDX-License-Identifier: MIT

package compose

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	xdraw "golang.org/x/image/draw"
)

// RenderPrintSheet composes the printer-ready sheet: the strip placed twice
// side by side, with the retrieval text block (info line, link line, album
// code) centered under each copy.
func RenderPrintSheet(strip image.Image, layout PrintLayout, albumCode string) (*image.RGBA, error) {
	b := strip.Bounds()
	if b.Dx() != layout.StripWidth || b.Dy() != layout.StripHeight {
		return nil, &Error{
			Op: "print",
			Detail: fmt.Sprintf("strip must be exactly %dx%d for printing, got %dx%d",
				layout.StripWidth, layout.StripHeight, b.Dx(), b.Dy()),
		}
	}
	if albumCode == "" {
		return nil, &Error{Op: "print", Detail: "album code is required"}
	}

	sheet := image.NewRGBA(image.Rect(0, 0, layout.CanvasWidth, layout.CanvasHeight))
	fill(sheet, layout.Background)

	// Two copies of the same strip: guests tear the sheet down the middle.
	left := image.Rect(0, 0, layout.StripWidth, layout.StripHeight)
	right := left.Add(image.Pt(layout.StripWidth, 0))
	xdraw.Draw(sheet, left, strip, b.Min, xdraw.Src)
	xdraw.Draw(sheet, right, strip, b.Min, xdraw.Src)

	lines := []string{layout.InfoLine, layout.LinkLine, albumCode}
	inner := (layout.StripWidth - layout.TextBoxWidth) / 2
	for copyIdx := 0; copyIdx < 2; copyIdx++ {
		x0 := copyIdx*layout.StripWidth + inner
		drawTextBlock(sheet, lines, layout, x0)
	}
	return sheet, nil
}

// drawTextBlock renders lines vertically centered in the text box whose
// left edge is x0. The bitmap face keeps output independent of host fonts.
func drawTextBlock(dst *image.RGBA, lines []string, layout PrintLayout, x0 int) {
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil()

	totalH := len(lines)*lineHeight + (len(lines)-1)*layout.LineSpacing
	startY := layout.TextTopY + max(0, (layout.TextBoxHeight-totalH)/2)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(layout.TextColor),
		Face: face,
	}

	y := startY + face.Metrics().Ascent.Ceil()
	for _, line := range lines {
		w := drawer.MeasureString(line).Ceil()
		x := x0 + max(0, (layout.TextBoxWidth-w)/2)
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(line)
		y += lineHeight + layout.LineSpacing
	}
}
