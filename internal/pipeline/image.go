package pipeline

import (
	"errors"
	"image"

	"medisense/internal/opencv/safe"
)

var (
	// ErrTooLarge reports an upload above the configured byte limit.
	ErrTooLarge = errors.New("image exceeds upload limit")
	// ErrMemoryLimit reports that decoding would exceed the native memory
	// budget.
	ErrMemoryLimit = errors.New("image exceeds memory budget")
	// ErrInvalidRequest reports a malformed processing request.
	ErrInvalidRequest = errors.New("invalid request")
)

// ImageData is one decoded upload. Image is kept for rendering overlays; Mat
// feeds the pipeline.
type ImageData struct {
	Image    image.Image
	Mat      *safe.Mat
	Width    int
	Height   int
	Channels int
	Format   string
	Size     int
}

func (d *ImageData) Close() {
	if d == nil {
		return
	}
	d.Mat.Close()
}
