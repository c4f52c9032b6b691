package filters

import (
	"context"
	"testing"

	"medisense/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func maskFrom(t *testing.T, rows, cols int, on func(r, c int) bool) *safe.Mat {
	data := make([]byte, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if on(r, c) {
				data[r*cols+c] = 255
			}
		}
	}
	m, err := safe.NewMaskFromBytes(rows, cols, data)
	require.NoError(t, err)
	return m
}

func TestContrastAdjuster(t *testing.T) {
	input, err := safe.NewMatFromBytes(1, 6, gocv.MatTypeCV8UC1, []byte{0, 38, 39, 100, 200, 255})
	require.NoError(t, err)
	defer input.Close()

	out, err := NewContrastAdjuster(1.3, -50).Apply(context.Background(), input)
	require.NoError(t, err)
	defer out.Close()

	data, err := out.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 1, 80, 210, 255}, data)
}

func TestGrayscaleAndBilateral(t *testing.T) {
	color := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), 20, 20, gocv.MatTypeCV8UC3)
	input, err := safe.NewMatFromMat(color)
	color.Close()
	require.NoError(t, err)
	defer input.Close()

	gray, err := NewGrayscaleConverter().Apply(context.Background(), input)
	require.NoError(t, err)
	defer gray.Close()
	assert.Equal(t, 1, gray.Channels())

	smoothed, err := NewBilateralFilter(15, 80, 80).Apply(context.Background(), gray)
	require.NoError(t, err)
	defer smoothed.Close()

	data, err := smoothed.Bytes()
	require.NoError(t, err)
	for _, v := range data {
		assert.Equal(t, byte(90), v)
	}

	_, err = NewBilateralFilter(15, 80, 80).Apply(context.Background(), input)
	assert.Error(t, err, "colour input must be rejected")
}

func TestMorphologyFilter(t *testing.T) {
	testCases := []struct {
		scenario string
		fn       func(t *testing.T)
	}{
		{
			scenario: "dilation grows by the kernel each iteration",
			fn: func(t *testing.T) {
				input := maskFrom(t, 9, 9, func(r, c int) bool { return r == 4 && c == 4 })
				defer input.Close()

				once, err := Dilate(RectKernel(3), 1).Apply(context.Background(), input)
				require.NoError(t, err)
				defer once.Close()
				assert.Equal(t, 9, safe.CountForeground(once))

				twice, err := Dilate(RectKernel(3), 2).Apply(context.Background(), input)
				require.NoError(t, err)
				defer twice.Close()
				assert.Equal(t, 25, safe.CountForeground(twice))
				assert.Equal(t, "dilate_x2", Dilate(RectKernel(3), 2).Name())
			},
		},
		{
			scenario: "erosion shrinks and never adds",
			fn: func(t *testing.T) {
				input := maskFrom(t, 9, 9, func(r, c int) bool { return r >= 2 && r <= 6 && c >= 2 && c <= 6 })
				defer input.Close()

				out, err := Erode(RectKernel(3), 1).Apply(context.Background(), input)
				require.NoError(t, err)
				defer out.Close()
				assert.Equal(t, 9, safe.CountForeground(out))
				assert.True(t, safe.IsBinary(out))

				gone, err := Erode(RectKernel(3), 3).Apply(context.Background(), input)
				require.NoError(t, err)
				defer gone.Close()
				assert.Zero(t, safe.CountForeground(gone))
			},
		},
		{
			scenario: "image border does not erode foreground",
			fn: func(t *testing.T) {
				input := maskFrom(t, 5, 5, func(r, c int) bool { return true })
				defer input.Close()

				out, err := Erode(RectKernel(3), 4).Apply(context.Background(), input)
				require.NoError(t, err)
				defer out.Close()
				assert.Equal(t, 25, safe.CountForeground(out))
			},
		},
		{
			scenario: "closing fills a one pixel hole",
			fn: func(t *testing.T) {
				input := maskFrom(t, 9, 9, func(r, c int) bool {
					return r >= 2 && r <= 6 && c >= 2 && c <= 6 && !(r == 4 && c == 4)
				})
				defer input.Close()

				out, err := Close(EllipseKernel(3)).Apply(context.Background(), input)
				require.NoError(t, err)
				defer out.Close()

				v, err := out.GetUCharAt(4, 4)
				require.NoError(t, err)
				assert.Equal(t, safe.Foreground, v)
				assert.Equal(t, 25, safe.CountForeground(out))
			},
		},
		{
			scenario: "zero iterations copy and bad kernels fail",
			fn: func(t *testing.T) {
				input := maskFrom(t, 3, 3, func(r, c int) bool { return r == 1 })
				defer input.Close()

				out, err := Erode(RectKernel(3), 0).Apply(context.Background(), input)
				require.NoError(t, err)
				defer out.Close()
				assert.Equal(t, 3, safe.CountForeground(out))

				_, err = Erode(RectKernel(0), 1).Apply(context.Background(), input)
				assert.Error(t, err)
				_, err = Erode(RectKernel(3), -1).Apply(context.Background(), input)
				assert.Error(t, err)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.scenario, tc.fn)
	}
}
