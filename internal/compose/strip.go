// SPDX-License-Identifier: MIT

package compose

import (
	"image"
	"os"

	xdraw "golang.org/x/image/draw"
)

// RenderStrip composes the ordered photos and the logo into a single strip.
// Photos are letterboxed into their tiles, never cropped or distorted.
func RenderStrip(photoPaths []string, layout StripLayout) (*image.RGBA, error) {
	if len(photoPaths) == 0 {
		return nil, &Error{Op: "strip", Detail: "no photos provided"}
	}
	if layout.LogoPath == "" {
		return nil, &Error{Op: "strip", Detail: "logo is required"}
	}
	if _, err := os.Stat(layout.LogoPath); err != nil {
		return nil, &Error{Op: "strip", Detail: "configured logo file does not exist", Err: err}
	}

	tiles := make([]*image.RGBA, 0, len(photoPaths)+1)
	for _, path := range photoPaths {
		img, err := loadImage(path)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, fitPreserveAspect(img, layout.PhotoWidth, layout.PhotoHeight, layout))
	}

	logo, err := loadImage(layout.LogoPath)
	if err != nil {
		return nil, &Error{Op: "strip", Detail: "failed to load logo image", Err: err}
	}
	tiles = append(tiles, fitPreserveAspect(logo, layout.PhotoWidth, layout.PhotoHeight, layout))

	w, h := layout.Size(len(photoPaths))
	strip := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(strip, layout.Background)

	y := layout.Padding
	for _, tile := range tiles {
		r := image.Rect(layout.Padding, y, layout.Padding+layout.PhotoWidth, y+layout.PhotoHeight)
		xdraw.Draw(strip, r, tile, image.Point{}, xdraw.Src)
		y += layout.PhotoHeight + layout.Padding
	}
	return strip, nil
}

// fitPreserveAspect scales img uniformly to fit a targetW x targetH tile,
// centering it on the layout background when aspect ratios differ.
func fitPreserveAspect(img image.Image, targetW, targetH int, layout StripLayout) *image.RGBA {
	tile := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	fill(tile, layout.Background)

	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW <= 0 || srcH <= 0 {
		return tile
	}

	scaleW := float64(targetW) / float64(srcW)
	scaleH := float64(targetH) / float64(srcH)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := max(1, int(float64(srcW)*scale+0.5))
	newH := max(1, int(float64(srcH)*scale+0.5))

	x := (targetW - newW) / 2
	y := (targetH - newH) / 2
	dst := image.Rect(x, y, x+newW, y+newH)
	xdraw.CatmullRom.Scale(tile, dst, img, b, xdraw.Src, nil)
	return tile
}

func fill(img *image.RGBA, c interface{ RGBA() (r, g, b, a uint32) }) {
	r, g, b, _ := c.RGBA()
	px := []uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 255}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, y):img.PixOffset(bounds.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			copy(row[i:i+4], px)
		}
	}
}
