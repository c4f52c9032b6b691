package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"medisense/internal/logger"
	"medisense/internal/opencv/memory"
	"medisense/internal/opencv/safe"
	"medisense/internal/timing"
	"medisense/internal/vein"
)

// Loader reads uploads with a byte limit and decodes them for the pipeline.
type Loader struct {
	memory   *memory.Tracker
	logger   logger.Logger
	timing   *timing.Tracker
	maxBytes int64
}

func NewLoader(mem *memory.Tracker, log logger.Logger, timer *timing.Tracker, maxBytes int64) *Loader {
	if log == nil {
		log = logger.NopLogger{}
	}
	if timer == nil {
		timer = timing.NewTracker(0)
	}
	return &Loader{
		memory:   mem,
		logger:   log,
		timing:   timer,
		maxBytes: maxBytes,
	}
}

func (l *Loader) Load(reader io.Reader) (*ImageData, error) {
	span := l.timing.StartTiming("load")
	defer l.timing.EndTiming(span)

	limited := reader
	if l.maxBytes > 0 {
		limited = io.LimitReader(reader, l.maxBytes+1)
	}

	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, l.maxBytes)
	}

	l.logger.Debug("ImageLoader", "image data read", map[string]interface{}{
		"size_bytes": len(data),
	})

	return l.LoadFromBytes(data)
}

func (l *Loader) LoadFromBytes(data []byte) (*ImageData, error) {
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vein.ErrDecode, err)
	}

	release := func() {}
	if l.memory != nil {
		// decoded Go image plus the BGR Mat
		estimate := int64(config.Width) * int64(config.Height) * 7
		if release, err = l.memory.Reserve(estimate); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMemoryLimit, err)
		}
	}
	// the tracked Mat takes over from the reservation once decoded
	defer release()

	img, mat, err := l.decode(data)
	if err != nil {
		return nil, err
	}
	if l.memory != nil {
		mat.Track(l.memory, "decoded")
	}

	imageData := &ImageData{
		Image:    img,
		Mat:      mat,
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
		Format:   format,
		Size:     len(data),
	}

	l.logger.Info("ImageLoader", "image loaded", map[string]interface{}{
		"width":    imageData.Width,
		"height":   imageData.Height,
		"channels": imageData.Channels,
		"format":   format,
	})

	return imageData, nil
}

func (l *Loader) decode(data []byte) (image.Image, *safe.Mat, error) {
	span := l.timing.StartTiming("decode")
	defer l.timing.EndTiming(span)

	img, err := vein.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	mat, err := vein.FromImage(img)
	if err != nil {
		return nil, nil, err
	}
	return img, mat, nil
}
