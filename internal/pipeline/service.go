package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"medisense/internal/logger"
	"medisense/internal/opencv/conversion"
	"medisense/internal/opencv/memory"
	"medisense/internal/opencv/safe"
	"medisense/internal/render"
	"medisense/internal/timing"
	"medisense/internal/vein"

	"github.com/lucasb-eyer/go-colorful"
)

type Options struct {
	Params         vein.Params
	Format         Format
	JPEGQuality    int
	MaxUploadBytes int64
	OverlayColor   colorful.Color
	Logger         logger.Logger
	Timing         *timing.Tracker
	Memory         *memory.Tracker
}

// Request selects what one Process call returns. Stage defaults to the
// skeleton.
type Request struct {
	Image   io.Reader
	Stage   string
	Overlay bool
	Preview bool
}

type Response struct {
	Body        []byte
	ContentType string
	Width       int
	Height      int
	Metrics     Metrics
	Timings     map[string]time.Duration
}

// Service runs uploads through the vein pipeline. It is safe for
// concurrent use; callers bound concurrency.
type Service struct {
	params  vein.Params
	loader  *Loader
	saver   *Saver
	logger  logger.Logger
	timing  *timing.Tracker
	memory  *memory.Tracker
	overlay colorful.Color
}

func NewService(opts Options) (*Service, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline parameters: %w", err)
	}
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = 95
	}
	if opts.Logger == nil {
		opts.Logger = logger.NopLogger{}
	}
	if opts.Timing == nil {
		opts.Timing = timing.NewTracker(0)
	}

	return &Service{
		params:  opts.Params,
		loader:  NewLoader(opts.Memory, opts.Logger, opts.Timing, opts.MaxUploadBytes),
		saver:   NewSaver(opts.Format, opts.JPEGQuality, opts.Logger, opts.Timing),
		logger:  opts.Logger,
		timing:  opts.Timing,
		memory:  opts.Memory,
		overlay: opts.OverlayColor,
	}, nil
}

func (s *Service) Timing() *timing.Tracker {
	return s.timing
}

func (s *Service) Memory() *memory.Tracker {
	return s.memory
}

func validStage(stage string) bool {
	if stage == "" {
		return true
	}
	for _, name := range vein.StageNames() {
		if stage == name {
			return true
		}
	}
	return false
}

func (s *Service) Process(ctx context.Context, req Request) (*Response, error) {
	if req.Image == nil {
		return nil, fmt.Errorf("%w: no image supplied", ErrInvalidRequest)
	}
	if !validStage(req.Stage) {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidRequest, req.Stage)
	}
	if req.Overlay && req.Stage == vein.StageNormalize {
		return nil, fmt.Errorf("%w: overlay needs a mask stage, not %q", ErrInvalidRequest, req.Stage)
	}

	start := time.Now()
	input, err := s.loader.Load(req.Image)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	timings := make(map[string]time.Duration)
	opts := []vein.Option{
		vein.WithObserver(func(stage string, _ *safe.Mat, elapsed time.Duration) {
			timings[stage] = elapsed
			s.timing.Record(stage, elapsed)
		}),
	}
	if s.memory != nil {
		opts = append(opts, vein.WithTracker(s.memory))
	}
	p, err := vein.NewPipeline(s.params, opts...)
	if err != nil {
		return nil, err
	}

	result, err := p.Run(ctx, input.Mat)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	selected, err := result.Stage(req.Stage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	out, err := s.compose(input, selected, req)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	if err := s.saver.Encode(&body, out); err != nil {
		return nil, err
	}

	metrics, err := ComputeMetrics(result)
	if err != nil {
		return nil, err
	}

	fields := metrics.Fields()
	for stage, elapsed := range timings {
		fields[stage+"_ms"] = elapsed.Milliseconds()
	}
	fields["total_ms"] = time.Since(start).Milliseconds()
	s.logger.Info("VeinService", "image processed", fields)

	return &Response{
		Body:        body.Bytes(),
		ContentType: s.saver.Format().ContentType(),
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		Metrics:     metrics,
		Timings:     timings,
	}, nil
}

func (s *Service) compose(input *ImageData, selected *safe.Mat, req Request) (image.Image, error) {
	img, err := conversion.MatToImage(selected)
	if err != nil {
		return nil, err
	}

	if req.Overlay {
		mask, ok := img.(*image.Gray)
		if !ok {
			return nil, fmt.Errorf("stage output is not a single channel image")
		}
		if img, err = render.Overlay(input.Image, mask, s.overlay, 1); err != nil {
			return nil, err
		}
	}

	if req.Preview {
		img = render.Thumbnail(img, render.PreviewSize)
	}
	return img, nil
}
