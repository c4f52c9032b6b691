// Package render turns pipeline masks into images meant for people: masks
// painted over the source photo and small previews.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// PreviewSize is the edge of the square box previews are fitted into.
const PreviewSize = 256

// ParseColor accepts #rgb or #rrggbb.
func ParseColor(hex string) (colorful.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	return c, nil
}

// Overlay paints every foreground pixel of mask onto a copy of photo, mixing
// tint in at the given opacity (0 keeps the photo, 1 paints solid tint).
func Overlay(photo image.Image, mask *image.Gray, tint colorful.Color, opacity float64) (*image.NRGBA, error) {
	if photo == nil || mask == nil {
		return nil, fmt.Errorf("overlay needs both a photo and a mask")
	}
	pb, mb := photo.Bounds(), mask.Bounds()
	if pb.Dx() != mb.Dx() || pb.Dy() != mb.Dy() {
		return nil, fmt.Errorf("mask %dx%d does not match photo %dx%d", mb.Dx(), mb.Dy(), pb.Dx(), pb.Dy())
	}
	if opacity < 0 || opacity > 1 {
		return nil, fmt.Errorf("opacity must be within [0, 1], got %g", opacity)
	}

	out := imaging.Clone(photo)
	for y := 0; y < mb.Dy(); y++ {
		for x := 0; x < mb.Dx(); x++ {
			if mask.GrayAt(mb.Min.X+x, mb.Min.Y+y).Y == 0 {
				continue
			}
			base, ok := colorful.MakeColor(out.NRGBAAt(x, y))
			if !ok {
				base = tint
			}
			r, g, b := base.BlendRgb(tint, opacity).Clamped().RGB255()
			out.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return out, nil
}

// Thumbnail scales img down to fit a size x size box, keeping its aspect
// ratio. Images already inside the box are returned unscaled.
func Thumbnail(img image.Image, size int) *image.NRGBA {
	if size <= 0 {
		size = PreviewSize
	}
	return imaging.Fit(img, size, size, imaging.Lanczos)
}
