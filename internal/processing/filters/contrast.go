package filters

import (
	"context"

	"medisense/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ContrastAdjuster computes saturate(alpha*src + beta) per sample.
type ContrastAdjuster struct {
	alpha float64
	beta  float64
}

func NewContrastAdjuster(alpha, beta float64) *ContrastAdjuster {
	return &ContrastAdjuster{alpha: alpha, beta: beta}
}

func (c *ContrastAdjuster) Name() string {
	return "contrast"
}

func (c *ContrastAdjuster) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateMatForOperation(input, c.Name()); err != nil {
		return nil, err
	}

	zeros := gocv.Zeros(input.Rows(), input.Cols(), input.Type())
	defer zeros.Close()

	dst := gocv.NewMat()
	gocv.AddWeighted(input.GetMat(), c.alpha, zeros, 0, c.beta, &dst)
	return safe.Adopt(dst, c.Name())
}
