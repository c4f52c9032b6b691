package vein

import "errors"

var (
	// ErrDecode reports input bytes that are not a non-empty raster image.
	ErrDecode = errors.New("vein: cannot decode image")

	// ErrNoRegionFound reports that no hand region could be isolated, for
	// example in a blank or uniformly coloured frame.
	ErrNoRegionFound = errors.New("vein: no hand region found")
)
