package vein

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"medisense/internal/opencv/conversion"
	"medisense/internal/opencv/safe"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Decode turns encoded image bytes into a Mat. EXIF orientation is applied
// so the pixels match what a viewer shows. PNG, JPEG, GIF, BMP, TIFF and
// WebP are accepted.
func Decode(data []byte) (*safe.Mat, error) {
	img, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return FromImage(img)
}

// DecodeImage decodes and orients an image without converting it.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has zero size", ErrDecode)
	}
	return img, nil
}

// FromImage converts a decoded image into a Mat suitable for Run.
func FromImage(img image.Image) (*safe.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has zero size", ErrDecode)
	}

	mat, err := conversion.ImageToMat(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return mat, nil
}
