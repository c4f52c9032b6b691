package vein

import (
	"context"
	"fmt"

	"medisense/internal/opencv/safe"
	"medisense/internal/processing/chain"
	"medisense/internal/processing/contour"
	"medisense/internal/processing/filters"
	"medisense/internal/processing/threshold"

	"gocv.io/x/gocv"
)

// ExtractVeinMask finds locally dark ridges of gray inside hand. An empty
// result is a valid outcome, not an error.
func ExtractVeinMask(ctx context.Context, gray, hand *safe.Mat, p Params) (*safe.Mat, error) {
	if err := safe.ValidateGray(gray, "vein mask"); err != nil {
		return nil, err
	}
	if err := safe.ValidateGray(hand, "vein mask"); err != nil {
		return nil, err
	}
	if err := safe.ValidateSameSize(gray, hand, "vein mask"); err != nil {
		return nil, err
	}

	ridges := chain.NewProcessingChain(
		threshold.NewAdaptiveThreshold(p.BlockSize, p.ThresholdOffset),
		filters.Dilate(p.Kernel, p.BridgeDilations),
		filters.Erode(p.Kernel, p.CleanupErosions),
	)
	cleaned, err := ridges.Execute(ctx, gray)
	if err != nil {
		return nil, fmt.Errorf("vein mask: %w", err)
	}
	defer cleaned.Close()

	candidates, err := fillAllContours(cleaned)
	if err != nil {
		return nil, err
	}
	defer candidates.Close()

	inside, err := intersect(candidates, hand)
	if err != nil {
		return nil, err
	}
	defer inside.Close()

	large, err := keepLargeRegions(inside, p.MinVeinArea)
	if err != nil {
		return nil, err
	}
	defer large.Close()

	veins, err := filters.Close(p.SmoothingKernel).Apply(ctx, large)
	if err != nil {
		return nil, fmt.Errorf("vein mask: %w", err)
	}
	return veins, nil
}

func fillAllContours(mask *safe.Mat) (*safe.Mat, error) {
	contours, err := contour.FindTree(mask)
	if err != nil {
		return nil, fmt.Errorf("vein candidates: %w", err)
	}
	return contour.Fill(mask.Rows(), mask.Cols(), contours)
}

func intersect(a, b *safe.Mat) (*safe.Mat, error) {
	dst := gocv.NewMat()
	gocv.BitwiseAnd(a.GetMat(), b.GetMat(), &dst)
	return safe.Adopt(dst, "intersect")
}

// keepLargeRegions keeps the regions of mask whose outer boundary encloses
// more than minArea. Islands inside a hole are judged on their own area and
// holes stay as they are in mask, so a larger minArea can only remove pixels.
func keepLargeRegions(mask *safe.Mat, minArea float64) (*safe.Mat, error) {
	regions, err := contour.FindRegions(mask)
	if err != nil {
		return nil, fmt.Errorf("vein area filter: %w", err)
	}

	kept, err := contour.FillRegions(mask.Rows(), mask.Cols(), contour.FilterRegionsByArea(regions, minArea))
	if err != nil {
		return nil, err
	}
	defer kept.Close()

	return intersect(kept, mask)
}
