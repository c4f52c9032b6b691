package safe

import (
	"fmt"

	"gocv.io/x/gocv"
)

const (
	Background uint8 = 0
	Foreground uint8 = 255
)

// NewMaskFromBytes builds a CV_8UC1 Mat from row-major pixels. Any non-zero
// input sample becomes Foreground.
func NewMaskFromBytes(rows, cols int, pixels []byte) (*Mat, error) {
	if err := ValidateDimensions(cols, rows, "NewMaskFromBytes"); err != nil {
		return nil, err
	}
	if len(pixels) != rows*cols {
		return nil, fmt.Errorf("pixel buffer has %d bytes, want %d", len(pixels), rows*cols)
	}

	data := make([]byte, len(pixels))
	for i, v := range pixels {
		if v != Background {
			data[i] = Foreground
		}
	}

	return NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC1, data)
}

// IsBinary reports whether every sample of a single channel Mat is either
// Background or Foreground.
func IsBinary(mat *Mat) bool {
	if ValidateGray(mat, "IsBinary") != nil {
		return false
	}
	m := mat.GetMat()
	for _, v := range m.ToBytes() {
		if v != Background && v != Foreground {
			return false
		}
	}
	return true
}

// CountForeground returns the number of non-zero samples.
func CountForeground(mat *Mat) int {
	if ValidateGray(mat, "CountForeground") != nil {
		return 0
	}
	return gocv.CountNonZero(mat.GetMat())
}
