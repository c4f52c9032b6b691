package pipeline

import (
	"fmt"
	"image"
	"io"
	"strings"

	"medisense/internal/logger"
	"medisense/internal/opencv/conversion"
	"medisense/internal/opencv/safe"
	"medisense/internal/timing"

	"github.com/disintegration/imaging"
)

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// Saver encodes results. Masks are lossless only as PNG; JPEG output exists
// for callers that display rather than analyse the result.
type Saver struct {
	format      Format
	jpegQuality int
	logger      logger.Logger
	timing      *timing.Tracker
}

func NewSaver(format Format, jpegQuality int, log logger.Logger, timer *timing.Tracker) *Saver {
	if log == nil {
		log = logger.NopLogger{}
	}
	if timer == nil {
		timer = timing.NewTracker(0)
	}
	return &Saver{
		format:      format,
		jpegQuality: jpegQuality,
		logger:      log,
		timing:      timer,
	}
}

func (s *Saver) Format() Format {
	return s.format
}

func (s *Saver) Encode(writer io.Writer, img image.Image) error {
	if img == nil {
		return fmt.Errorf("no image data to save")
	}

	span := s.timing.StartTiming("encode")
	defer s.timing.EndTiming(span)

	var err error
	switch s.format {
	case FormatJPEG:
		err = imaging.Encode(writer, img, imaging.JPEG, imaging.JPEGQuality(s.jpegQuality))
	default:
		err = imaging.Encode(writer, img, imaging.PNG)
	}

	if err != nil {
		s.logger.Error("ImageSaver", err, map[string]interface{}{
			"format": string(s.format),
		})
		return fmt.Errorf("failed to encode %s: %w", s.format, err)
	}

	s.logger.Debug("ImageSaver", "image encoded", map[string]interface{}{
		"format": string(s.format),
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	})
	return nil
}

func (s *Saver) EncodeMat(writer io.Writer, mat *safe.Mat) error {
	img, err := conversion.MatToImage(mat)
	if err != nil {
		return err
	}
	return s.Encode(writer, img)
}
