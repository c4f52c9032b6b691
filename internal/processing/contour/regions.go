package contour

import (
	"fmt"
	"image"

	"medisense/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Region is one outer boundary with the boundaries of the holes directly
// inside it.
type Region struct {
	Outer Contour
	Holes []Contour
}

// hierarchy entries are [next, previous, first child, parent]
const hierarchyParent = 3

// FindRegions traces a two-level hierarchy of mask. Islands lying inside a
// hole are regions of their own, not part of the surrounding region.
func FindRegions(mask *safe.Mat) ([]Region, error) {
	if err := safe.ValidateGray(mask, "contour.FindRegions"); err != nil {
		return nil, err
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(mask.GetMat(), &binary, 0, float32(safe.Foreground), gocv.ThresholdBinary)

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()
	traced := gocv.FindContoursWithParams(binary, &hierarchy, gocv.RetrievalCComp, gocv.ChainApproxNone)
	defer traced.Close()

	points := traced.ToPoints()
	if len(points) == 0 {
		return nil, nil
	}
	if hierarchy.Cols() != len(points) {
		return nil, fmt.Errorf("contour hierarchy has %d entries for %d contours", hierarchy.Cols(), len(points))
	}

	regionOf := make(map[int]int, len(points))
	var regions []Region
	for i, pts := range points {
		if hierarchy.GetVeciAt(0, i)[hierarchyParent] < 0 {
			regionOf[i] = len(regions)
			regions = append(regions, Region{Outer: Contour(pts)})
		}
	}
	for i, pts := range points {
		parent := int(hierarchy.GetVeciAt(0, i)[hierarchyParent])
		if parent < 0 || len(pts) == 0 {
			continue
		}
		r, ok := regionOf[parent]
		if !ok {
			return nil, fmt.Errorf("hole contour %d has no outer parent", i)
		}
		regions[r].Holes = append(regions[r].Holes, Contour(pts))
	}
	return regions, nil
}

// FilterRegionsByArea keeps regions whose outer boundary encloses strictly
// more than minArea.
func FilterRegionsByArea(regions []Region, minArea float64) []Region {
	kept := make([]Region, 0, len(regions))
	for _, r := range regions {
		if Area(r.Outer) > minArea {
			kept = append(kept, r)
		}
	}
	return kept
}

// FillRegions rasterizes every region with its holes left open. Regions are
// drawn one at a time, so a hole of one region never clears another region.
func FillRegions(rows, cols int, regions []Region) (*safe.Mat, error) {
	if err := safe.ValidateDimensions(cols, rows, "contour.FillRegions"); err != nil {
		return nil, err
	}

	canvas := gocv.Zeros(rows, cols, gocv.MatTypeCV8UC1)
	for _, r := range regions {
		pts := make([][]image.Point, 0, len(r.Holes)+1)
		pts = append(pts, r.Outer)
		for _, h := range r.Holes {
			pts = append(pts, h)
		}
		pv := gocv.NewPointsVectorFromPoints(pts)
		gocv.FillPoly(&canvas, pv, fillColor)
		pv.Close()
	}

	mask, err := safe.Adopt(canvas, "region_fill")
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize regions: %w", err)
	}
	return mask, nil
}
