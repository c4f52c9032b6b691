package vein

import (
	"context"
	"fmt"
	"time"

	"medisense/internal/opencv/safe"
	"medisense/internal/processing/chain"
)

const (
	StageNormalize = "normalize"
	StageHand      = "hand"
	StageVeins     = "veins"
	StageSkeleton  = "skeleton"
)

// StageNames lists stage names in execution order.
func StageNames() []string {
	return []string{StageNormalize, StageHand, StageVeins, StageSkeleton}
}

// Result holds every intermediate product of one run. The caller owns all
// Mats and must call Close.
type Result struct {
	Gray     *safe.Mat
	Hand     *safe.Mat
	Veins    *safe.Mat
	Skeleton *safe.Mat
}

// Stage returns the Mat produced by the named stage.
func (r *Result) Stage(name string) (*safe.Mat, error) {
	switch name {
	case StageNormalize:
		return r.Gray, nil
	case StageHand:
		return r.Hand, nil
	case StageVeins:
		return r.Veins, nil
	case StageSkeleton, "":
		return r.Skeleton, nil
	default:
		return nil, fmt.Errorf("unknown stage %q", name)
	}
}

func (r *Result) Close() {
	if r == nil {
		return
	}
	r.Gray.Close()
	r.Hand.Close()
	r.Veins.Close()
	r.Skeleton.Close()
}

type Option func(*Pipeline)

// WithTracker records every stage output on tracker.
func WithTracker(tracker safe.MemoryTracker) Option {
	return func(p *Pipeline) {
		p.tracker = tracker
	}
}

// WithObserver is called after each stage completes.
func WithObserver(observer chain.Observer) Option {
	return func(p *Pipeline) {
		p.observer = observer
	}
}

// Pipeline runs the four stages with fixed parameters. A Pipeline is
// immutable after construction and safe for concurrent use.
type Pipeline struct {
	params   Params
	tracker  safe.MemoryTracker
	observer chain.Observer
}

func NewPipeline(params Params, opts ...Option) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline parameters: %w", err)
	}

	p := &Pipeline{params: params}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) Params() Params {
	return p.params
}

// Run executes all stages on raw. Cancellation is checked between stages.
func (p *Pipeline) Run(ctx context.Context, raw *safe.Mat) (*Result, error) {
	result := &Result{}
	ok := false
	defer func() {
		if !ok {
			result.Close()
		}
	}()

	var err error
	if result.Gray, err = p.stage(ctx, StageNormalize, func() (*safe.Mat, error) {
		return Normalize(ctx, raw, p.params)
	}); err != nil {
		return nil, err
	}
	if result.Hand, err = p.stage(ctx, StageHand, func() (*safe.Mat, error) {
		return ExtractHandMask(ctx, result.Gray, p.params)
	}); err != nil {
		return nil, err
	}
	if result.Veins, err = p.stage(ctx, StageVeins, func() (*safe.Mat, error) {
		return ExtractVeinMask(ctx, result.Gray, result.Hand, p.params)
	}); err != nil {
		return nil, err
	}
	if result.Skeleton, err = p.stage(ctx, StageSkeleton, func() (*safe.Mat, error) {
		return Skeletonize(ctx, result.Veins)
	}); err != nil {
		return nil, err
	}

	ok = true
	return result, nil
}

// RunBytes decodes data and runs the pipeline on it.
func (p *Pipeline) RunBytes(ctx context.Context, data []byte) (*Result, error) {
	raw, err := Decode(data)
	if err != nil {
		return nil, err
	}
	defer raw.Close()
	return p.Run(ctx, raw)
}

func (p *Pipeline) stage(ctx context.Context, name string, run func() (*safe.Mat, error)) (*safe.Mat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := run()
	if err != nil {
		return nil, err
	}

	out.Track(p.tracker, name)
	if p.observer != nil {
		p.observer(name, out, time.Since(start))
	}
	return out, nil
}
