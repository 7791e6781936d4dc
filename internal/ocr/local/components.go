package local

// component is a 4-connected foreground blob found by binarizing the
// input image.
type component struct {
	minX, minY, maxX, maxY int
	count                  int
}

func (c component) w() int { return c.maxX - c.minX + 1 }
func (c component) h() int { return c.maxY - c.minY + 1 }

// findComponents runs 4-connected BFS labeling over a binary mask of
// size w x h and returns one component per connected blob of `true`
// pixels.
func findComponents(mask []bool, w, h int) []component {
	visited := make([]bool, w*h)
	var comps []component
	idx := func(x, y int) int { return y*w + x }

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := idx(x, y)
			if !mask[i] || visited[i] {
				continue
			}
			comps = append(comps, bfsComponent(mask, visited, w, h, x, y))
		}
	}
	return comps
}

func bfsComponent(mask []bool, visited []bool, w, h, startX, startY int) component {
	idx := func(x, y int) int { return y*w + x }
	stack := []int{idx(startX, startY)}
	visited[idx(startX, startY)] = true

	c := component{minX: startX, minY: startY, maxX: startX, maxY: startY}
	dirs := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		cx, cy := cur%w, cur/w

		c.count++
		if cx < c.minX {
			c.minX = cx
		}
		if cx > c.maxX {
			c.maxX = cx
		}
		if cy < c.minY {
			c.minY = cy
		}
		if cy > c.maxY {
			c.maxY = cy
		}

		for _, d := range dirs {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			ni := idx(nx, ny)
			if mask[ni] && !visited[ni] {
				visited[ni] = true
				stack = append(stack, ni)
			}
		}
	}
	return c
}
