package vein

import (
	"context"
	"fmt"

	"medisense/internal/opencv/safe"
	"medisense/internal/processing/chain"
	"medisense/internal/processing/filters"
)

// Normalize converts raw to intensity, smooths it while keeping edges and
// applies the linear contrast remap.
func Normalize(ctx context.Context, raw *safe.Mat, p Params) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(raw, "normalize"); err != nil {
		return nil, err
	}

	pc := chain.NewProcessingChain(
		filters.NewGrayscaleConverter(),
		filters.NewBilateralFilter(p.BilateralDiameter, p.BilateralSigmaColor, p.BilateralSigmaSpace),
		filters.NewContrastAdjuster(p.ContrastAlpha, p.ContrastBeta),
	)

	gray, err := pc.Execute(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return gray, nil
}
