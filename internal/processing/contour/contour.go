// Package contour traces region boundaries of binary masks and rasterizes
// them back into masks.
package contour

import (
	"fmt"
	"image"
	"image/color"

	"medisense/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Contour is an ordered boundary of one foreground region.
type Contour []image.Point

var fillColor = color.RGBA{R: safe.Foreground, G: safe.Foreground, B: safe.Foreground, A: 255}

// Find traces contours of mask. Any non-zero sample counts as foreground.
func Find(mask *safe.Mat, mode gocv.RetrievalMode, method gocv.ContourApproximationMode) ([]Contour, error) {
	if err := safe.ValidateGray(mask, "contour.Find"); err != nil {
		return nil, err
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(mask.GetMat(), &binary, 0, float32(safe.Foreground), gocv.ThresholdBinary)

	traced := gocv.FindContours(binary, mode, method)
	defer traced.Close()

	points := traced.ToPoints()
	contours := make([]Contour, 0, len(points))
	for _, pts := range points {
		if len(pts) == 0 {
			continue
		}
		contours = append(contours, Contour(pts))
	}
	return contours, nil
}

// FindExternal returns only outermost boundaries with every boundary point.
func FindExternal(mask *safe.Mat) ([]Contour, error) {
	return Find(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
}

// FindTree returns outer and hole boundaries at every nesting level with
// straight runs compressed to their end points.
func FindTree(mask *safe.Mat) ([]Contour, error) {
	return Find(mask, gocv.RetrievalTree, gocv.ChainApproxSimple)
}

// Area is the polygon area enclosed by c.
func Area(c Contour) float64 {
	if len(c) < 3 {
		return 0
	}
	pv := gocv.NewPointVectorFromPoints(c)
	defer pv.Close()
	return gocv.ContourArea(pv)
}

// Largest returns the contour with the greatest area. On equal areas the
// earliest contour wins. ok is false for an empty slice.
func Largest(contours []Contour) (largest Contour, area float64, ok bool) {
	for i, c := range contours {
		a := Area(c)
		if i == 0 || a > area {
			largest, area, ok = c, a, true
		}
	}
	return largest, area, ok
}

// Fill rasterizes contours, filled, into a new rows x cols mask. All contours
// are drawn in one pass so nested boundaries leave their holes open.
func Fill(rows, cols int, contours []Contour) (*safe.Mat, error) {
	if err := safe.ValidateDimensions(cols, rows, "contour.Fill"); err != nil {
		return nil, err
	}

	canvas := gocv.Zeros(rows, cols, gocv.MatTypeCV8UC1)
	if len(contours) > 0 {
		pts := make([][]image.Point, len(contours))
		for i, c := range contours {
			pts[i] = c
		}
		pv := gocv.NewPointsVectorFromPoints(pts)
		gocv.FillPoly(&canvas, pv, fillColor)
		pv.Close()
	}

	mask, err := safe.Adopt(canvas, "contour_fill")
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize contours: %w", err)
	}
	return mask, nil
}
