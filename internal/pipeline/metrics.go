package pipeline

import (
	"fmt"

	"medisense/internal/opencv/safe"
	"medisense/internal/vein"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// Metrics summarises one pipeline result for logs and response headers.
type Metrics struct {
	HandPixels        int
	VeinPixels        int
	SkeletonPixels    int
	VeinSegments      int
	MeanSegmentArea   float64
	StdDevSegmentArea float64
	// HandCoverage is the fraction of hand pixels marked as vein.
	HandCoverage float64
}

func ComputeMetrics(result *vein.Result) (Metrics, error) {
	if result == nil {
		return Metrics{}, fmt.Errorf("no result to measure")
	}
	for _, m := range []*safe.Mat{result.Hand, result.Veins, result.Skeleton} {
		if err := safe.ValidateGray(m, "metrics"); err != nil {
			return Metrics{}, err
		}
	}

	metrics := Metrics{
		HandPixels:     safe.CountForeground(result.Hand),
		VeinPixels:     safe.CountForeground(result.Veins),
		SkeletonPixels: safe.CountForeground(result.Skeleton),
	}
	if metrics.HandPixels > 0 {
		metrics.HandCoverage = float64(metrics.VeinPixels) / float64(metrics.HandPixels)
	}

	areas := segmentAreas(result.Veins)
	metrics.VeinSegments = len(areas)
	switch len(areas) {
	case 0:
	case 1:
		metrics.MeanSegmentArea = areas[0]
	default:
		metrics.MeanSegmentArea, metrics.StdDevSegmentArea = stat.MeanStdDev(areas, nil)
	}
	return metrics, nil
}

// column of the area statistic in the ConnectedComponentsWithStats output
const ccStatArea = 4

// segmentAreas returns the pixel count of every 8-connected region.
func segmentAreas(mask *safe.Mat) []float64 {
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(mask.GetMat(), &labels, &stats, &centroids)

	// label 0 is the background
	areas := make([]float64, 0, n)
	for i := 1; i < n; i++ {
		areas = append(areas, float64(stats.GetIntAt(i, ccStatArea)))
	}
	return areas
}

func (m Metrics) Fields() map[string]interface{} {
	return map[string]interface{}{
		"hand_pixels":         m.HandPixels,
		"vein_pixels":         m.VeinPixels,
		"skeleton_pixels":     m.SkeletonPixels,
		"vein_segments":       m.VeinSegments,
		"mean_segment_area":   m.MeanSegmentArea,
		"stddev_segment_area": m.StdDevSegmentArea,
		"hand_coverage":       m.HandCoverage,
	}
}
