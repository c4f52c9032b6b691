// Package thinning reduces binary masks to one pixel wide skeletons.
//
// Candidates are chosen with the two sub-iteration rule of Zhang and Suen.
// Each candidate is then removed only if it is still a simple point of the
// current image (Yokoi 8-connectivity number of 1) and not an end point.
// Removing simple points one at a time keeps every 8-connected component
// intact, so components never split or vanish. Passes repeat until one
// removes nothing, which makes the result a fixed point.
package thinning

import (
	"context"
	"fmt"

	"medisense/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// neighbour offsets P2..P9: N, NE, E, SE, S, SW, W, NW.
var (
	dr = [8]int{-1, -1, 0, 1, 1, 1, 0, -1}
	dc = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

type grid struct {
	rows, cols int
	px         []uint8
}

func (g *grid) at(r, c int) uint8 {
	if r < 0 || r >= g.rows || c < 0 || c >= g.cols {
		return 0
	}
	return g.px[r*g.cols+c]
}

func (g *grid) neighbours(r, c int) (p [8]uint8) {
	for i := range p {
		p[i] = g.at(r+dr[i], c+dc[i])
	}
	return p
}

func count(p [8]uint8) int {
	n := 0
	for _, v := range p {
		n += int(v)
	}
	return n
}

// transitions counts 0->1 changes walking P2..P9 and back to P2.
func transitions(p [8]uint8) int {
	n := 0
	for i := range p {
		if p[i] == 0 && p[(i+1)%8] == 1 {
			n++
		}
	}
	return n
}

// simple reports whether removing the pixel with neighbours p keeps the
// topology of both foreground (8-connected) and background (4-connected).
func simple(p [8]uint8) bool {
	// x1..x8 counter-clockwise from East.
	x := [9]uint8{1 - p[2], 1 - p[1], 1 - p[0], 1 - p[7], 1 - p[6], 1 - p[5], 1 - p[4], 1 - p[3]}
	x[8] = x[0]
	n := 0
	for k := 0; k < 8; k += 2 {
		n += int(x[k]) - int(x[k]*x[k+1]*x[k+2])
	}
	return n == 1
}

func candidate(p [8]uint8, step int) bool {
	b := count(p)
	if b < 2 || b > 6 || transitions(p) != 1 {
		return false
	}
	n, e, s, w := p[0], p[2], p[4], p[6]
	if step == 0 {
		return n*e*s == 0 && e*s*w == 0
	}
	return n*e*w == 0 && n*s*w == 0
}

// Thin skeletonizes a row-major mask. Any non-zero input sample is
// foreground; the result holds only 0 and 255.
func Thin(pixels []byte, rows, cols int) ([]byte, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid mask size %dx%d", cols, rows)
	}
	if len(pixels) != rows*cols {
		return nil, fmt.Errorf("pixel buffer has %d bytes, want %d", len(pixels), rows*cols)
	}

	g := &grid{rows: rows, cols: cols, px: make([]uint8, len(pixels))}
	for i, v := range pixels {
		if v != 0 {
			g.px[i] = 1
		}
	}

	var marked []int
	for {
		removed := false
		for step := 0; step < 2; step++ {
			marked = marked[:0]
			for r := 0; r < rows; r++ {
				for c := 0; c < cols; c++ {
					if g.px[r*cols+c] == 1 && candidate(g.neighbours(r, c), step) {
						marked = append(marked, r*cols+c)
					}
				}
			}
			for _, idx := range marked {
				p := g.neighbours(idx/cols, idx%cols)
				if count(p) >= 2 && simple(p) {
					g.px[idx] = 0
					removed = true
				}
			}
		}
		if !removed {
			break
		}
	}

	out := make([]byte, len(g.px))
	for i, v := range g.px {
		if v == 1 {
			out[i] = safe.Foreground
		}
	}
	return out, nil
}

// Skeletonize thins a single channel mask into a new mask.
func Skeletonize(mask *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateGray(mask, "skeletonize"); err != nil {
		return nil, err
	}

	data, err := mask.Bytes()
	if err != nil {
		return nil, err
	}

	thinned, err := Thin(data, mask.Rows(), mask.Cols())
	if err != nil {
		return nil, err
	}
	return safe.NewMatFromBytes(mask.Rows(), mask.Cols(), gocv.MatTypeCV8UC1, thinned)
}

// Thinner adapts Skeletonize to a processing chain step.
type Thinner struct{}

func NewThinner() *Thinner {
	return &Thinner{}
}

func (t *Thinner) Name() string {
	return "skeletonize"
}

func (t *Thinner) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return Skeletonize(input)
}
