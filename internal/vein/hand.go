package vein

import (
	"context"
	"fmt"

	"medisense/internal/opencv/safe"
	"medisense/internal/processing/contour"
	"medisense/internal/processing/filters"

	"gocv.io/x/gocv"
)

// ExtractHandMask fills the outer boundary of the largest foreground region
// of gray and erodes it p.HandErosions times with p.Kernel.
func ExtractHandMask(ctx context.Context, gray *safe.Mat, p Params) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filled, err := fillLargestRegion(gray)
	if err != nil {
		return nil, err
	}
	defer filled.Close()

	hand, err := filters.Erode(p.Kernel, p.HandErosions).Apply(ctx, filled)
	if err != nil {
		return nil, fmt.Errorf("hand mask: %w", err)
	}
	return hand, nil
}

// fillLargestRegion rasterizes the largest external contour of gray. A
// frame without contrast has no region to isolate even though the whole
// frame traces as one contour.
func fillLargestRegion(gray *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateGray(gray, "hand mask"); err != nil {
		return nil, err
	}

	minVal, maxVal, _, _ := gocv.MinMaxLoc(gray.GetMat())
	if minVal == maxVal {
		return nil, fmt.Errorf("%w: uniform frame", ErrNoRegionFound)
	}

	contours, err := contour.FindExternal(gray)
	if err != nil {
		return nil, fmt.Errorf("hand mask: %w", err)
	}

	largest, _, ok := contour.Largest(contours)
	if !ok {
		return nil, ErrNoRegionFound
	}

	return contour.Fill(gray.Rows(), gray.Cols(), []contour.Contour{largest})
}
