package vein

import (
	"context"
	"fmt"

	"medisense/internal/opencv/safe"
	"medisense/internal/processing/thinning"
)

// Skeletonize thins veins to curves one pixel wide. Components are neither
// split nor removed, and the result is a fixed point of the operation.
func Skeletonize(ctx context.Context, veins *safe.Mat) (*safe.Mat, error) {
	skeleton, err := thinning.NewThinner().Apply(ctx, veins)
	if err != nil {
		return nil, fmt.Errorf("skeleton: %w", err)
	}
	return skeleton, nil
}
