// Package vein extracts a one pixel wide vein skeleton from a photograph of
// a hand.
//
// The work is split into four stages that run strictly in order:
//
//	Normalize         colour photo -> denoised, contrast adjusted gray image
//	ExtractHandMask   gray image   -> eroded interior of the largest region
//	ExtractVeinMask   gray + hand  -> locally dark ridges inside the hand
//	Skeletonize       vein mask    -> connectivity preserving skeleton
//
// Every stage reads its inputs without modifying them and returns a newly
// allocated Mat owned by the caller. Nothing in the package holds global
// state, so independent Pipeline runs may execute concurrently.
package vein
