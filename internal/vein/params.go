package vein

import (
	"fmt"

	"medisense/internal/processing/filters"
	"medisense/internal/processing/threshold"
)

// Params holds the numeric settings of every stage. DefaultParams
// reproduces the reference output; the thresholding and area settings may
// be tuned.
type Params struct {
	BilateralDiameter   int
	BilateralSigmaColor float64
	BilateralSigmaSpace float64
	ContrastAlpha       float64
	ContrastBeta        float64

	// Kernel is the structuring element shared by the hand and vein stages.
	Kernel       filters.Kernel
	HandErosions int

	BlockSize       int
	ThresholdOffset float64
	BridgeDilations int
	CleanupErosions int
	// MinVeinArea discards regions whose enclosed area is not larger.
	MinVeinArea     float64
	SmoothingKernel filters.Kernel
}

// NewKernel returns the 3x3 all-ones structuring element.
func NewKernel() filters.Kernel {
	return filters.RectKernel(3)
}

func DefaultParams() Params {
	return Params{
		BilateralDiameter:   15,
		BilateralSigmaColor: 80,
		BilateralSigmaSpace: 80,
		ContrastAlpha:       1.3,
		ContrastBeta:        -50,
		Kernel:              NewKernel(),
		HandErosions:        15,
		BlockSize:           27,
		ThresholdOffset:     5,
		BridgeDilations:     2,
		CleanupErosions:     1,
		MinVeinArea:         200,
		SmoothingKernel:     filters.EllipseKernel(3),
	}
}

func (p Params) Validate() error {
	if p.BilateralDiameter <= 0 {
		return fmt.Errorf("bilateral diameter must be positive, got %d", p.BilateralDiameter)
	}
	if p.Kernel.Size <= 0 || p.SmoothingKernel.Size <= 0 {
		return fmt.Errorf("structuring elements must have a positive size")
	}
	if p.HandErosions < 0 || p.BridgeDilations < 0 || p.CleanupErosions < 0 {
		return fmt.Errorf("iteration counts must not be negative")
	}
	if err := threshold.ValidateBlockSize(p.BlockSize); err != nil {
		return err
	}
	if p.MinVeinArea < 0 {
		return fmt.Errorf("minimum vein area must not be negative, got %g", p.MinVeinArea)
	}
	return nil
}
