package filters

import (
	"context"
	"fmt"

	"medisense/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// BilateralFilter smooths texture while keeping strong edges.
type BilateralFilter struct {
	diameter   int
	sigmaColor float64
	sigmaSpace float64
}

func NewBilateralFilter(diameter int, sigmaColor, sigmaSpace float64) *BilateralFilter {
	return &BilateralFilter{
		diameter:   diameter,
		sigmaColor: sigmaColor,
		sigmaSpace: sigmaSpace,
	}
}

func (b *BilateralFilter) Name() string {
	return "bilateral"
}

func (b *BilateralFilter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateGray(input, b.Name()); err != nil {
		return nil, err
	}
	if b.diameter <= 0 {
		return nil, fmt.Errorf("bilateral diameter must be positive, got %d", b.diameter)
	}

	dst := gocv.NewMat()
	gocv.BilateralFilter(input.GetMat(), &dst, b.diameter, b.sigmaColor, b.sigmaSpace)
	return safe.Adopt(dst, b.Name())
}
