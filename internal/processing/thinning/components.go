package thinning

// CountComponents labels the non-zero samples of a row-major mask and
// returns the number of connected components. eight selects 8-connectivity
// instead of 4-connectivity.
func CountComponents(pixels []byte, rows, cols int, eight bool) int {
	seen := make([]bool, len(pixels))
	stack := make([]int, 0, 64)
	components := 0

	for start, v := range pixels {
		if v == 0 || seen[start] {
			continue
		}
		components++
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			r, c := idx/cols, idx%cols
			for i := range dr {
				if !eight && dr[i] != 0 && dc[i] != 0 {
					continue
				}
				nr, nc := r+dr[i], c+dc[i]
				if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
					continue
				}
				n := nr*cols + nc
				if pixels[n] != 0 && !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
	}
	return components
}
