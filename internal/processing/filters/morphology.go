package filters

import (
	"context"
	"fmt"
	"image"

	"medisense/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Kernel describes a structuring element. The native element is built per
// call, so a Kernel value can be shared between goroutines.
type Kernel struct {
	Shape gocv.MorphShape
	Size  int
}

// RectKernel returns a size x size all-ones structuring element.
func RectKernel(size int) Kernel {
	return Kernel{Shape: gocv.MorphRect, Size: size}
}

func EllipseKernel(size int) Kernel {
	return Kernel{Shape: gocv.MorphEllipse, Size: size}
}

func (k Kernel) build() (gocv.Mat, error) {
	if k.Size <= 0 {
		return gocv.Mat{}, fmt.Errorf("kernel size must be positive, got %d", k.Size)
	}
	return gocv.GetStructuringElement(k.Shape, image.Point{X: k.Size, Y: k.Size}), nil
}

type MorphOperation int

const (
	MorphErode MorphOperation = iota
	MorphDilate
	MorphClose
)

func (op MorphOperation) String() string {
	switch op {
	case MorphErode:
		return "erode"
	case MorphDilate:
		return "dilate"
	case MorphClose:
		return "close"
	default:
		return fmt.Sprintf("morph(%d)", int(op))
	}
}

// MorphologyFilter applies one morphological operation. Erosion and
// dilation are repeated iterations times with the same kernel.
type MorphologyFilter struct {
	operation  MorphOperation
	kernel     Kernel
	iterations int
}

func NewMorphologyFilter(operation MorphOperation, kernel Kernel, iterations int) *MorphologyFilter {
	return &MorphologyFilter{
		operation:  operation,
		kernel:     kernel,
		iterations: iterations,
	}
}

func Erode(kernel Kernel, iterations int) *MorphologyFilter {
	return NewMorphologyFilter(MorphErode, kernel, iterations)
}

func Dilate(kernel Kernel, iterations int) *MorphologyFilter {
	return NewMorphologyFilter(MorphDilate, kernel, iterations)
}

func Close(kernel Kernel) *MorphologyFilter {
	return NewMorphologyFilter(MorphClose, kernel, 1)
}

func (m *MorphologyFilter) Name() string {
	if m.iterations > 1 {
		return fmt.Sprintf("%s_x%d", m.operation, m.iterations)
	}
	return m.operation.String()
}

func (m *MorphologyFilter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateGray(input, m.Name()); err != nil {
		return nil, err
	}
	if m.iterations < 0 {
		return nil, fmt.Errorf("iterations must not be negative, got %d", m.iterations)
	}
	if m.iterations == 0 {
		return input.Clone()
	}

	kernel, err := m.kernel.build()
	if err != nil {
		return nil, err
	}
	defer kernel.Close()

	if m.operation == MorphClose {
		dst := gocv.NewMat()
		gocv.MorphologyEx(input.GetMat(), &dst, gocv.MorphClose, kernel)
		return safe.Adopt(dst, m.Name())
	}

	return m.repeat(input.GetMat(), kernel)
}

// repeat ping-pongs between two buffers so each pass reads the previous
// pass's full output.
func (m *MorphologyFilter) repeat(src gocv.Mat, kernel gocv.Mat) (*safe.Mat, error) {
	current := src.Clone()
	scratch := gocv.NewMat()
	defer func() { scratch.Close() }()

	for i := 0; i < m.iterations; i++ {
		switch m.operation {
		case MorphErode:
			gocv.Erode(current, &scratch, kernel)
		case MorphDilate:
			gocv.Dilate(current, &scratch, kernel)
		default:
			current.Close()
			return nil, fmt.Errorf("unsupported repeated operation %s", m.operation)
		}
		current, scratch = scratch, current
	}

	return safe.Adopt(current, m.Name())
}
