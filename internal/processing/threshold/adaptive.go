package threshold

import (
	"context"
	"fmt"

	"medisense/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// AdaptiveThreshold marks pixels darker than their Gaussian-weighted
// neighbourhood mean minus offset as foreground.
type AdaptiveThreshold struct {
	blockSize int
	offset    float64
}

func NewAdaptiveThreshold(blockSize int, offset float64) *AdaptiveThreshold {
	return &AdaptiveThreshold{
		blockSize: blockSize,
		offset:    offset,
	}
}

func (a *AdaptiveThreshold) Name() string {
	return "adaptive_threshold"
}

func ValidateBlockSize(blockSize int) error {
	if blockSize < 3 || blockSize%2 == 0 {
		return fmt.Errorf("block size must be an odd number >= 3, got %d", blockSize)
	}
	return nil
}

func (a *AdaptiveThreshold) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateGray(input, a.Name()); err != nil {
		return nil, err
	}
	if err := ValidateBlockSize(a.blockSize); err != nil {
		return nil, err
	}

	dst := gocv.NewMat()
	gocv.AdaptiveThreshold(input.GetMat(), &dst, float32(safe.Foreground),
		gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, a.blockSize, float32(a.offset))
	return safe.Adopt(dst, a.Name())
}
