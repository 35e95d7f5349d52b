package pathfind

import "mazefire.ai/internal/sim/grid"

// Shape tells a renderer which path segment to draw on a cell. Endpoint and
// corner names give the directions the segment connects to.
type Shape string

const (
	ShapeSingle          Shape = "single"
	ShapeEndLeft         Shape = "end_left"
	ShapeEndDown         Shape = "end_down"
	ShapeEndRight        Shape = "end_right"
	ShapeEndUp           Shape = "end_up"
	ShapeVertical        Shape = "vertical"
	ShapeHorizontal      Shape = "horizontal"
	ShapeCornerLeftDown  Shape = "corner_left_down"
	ShapeCornerRightDown Shape = "corner_right_down"
	ShapeCornerRightUp   Shape = "corner_right_up"
	ShapeCornerLeftUp    Shape = "corner_left_up"
)

// Shapes classifies every cell of path by its neighbors along the path.
func Shapes(path []grid.Cell) []Shape {
	out := make([]Shape, len(path))
	if len(path) == 1 {
		out[0] = ShapeSingle
		return out
	}
	for i, c := range path {
		switch {
		case i == 0:
			out[i] = endShape(c, path[1])
		case i == len(path)-1:
			out[i] = endShape(c, path[i-1])
		default:
			out[i] = midShape(path[i-1], c, path[i+1])
		}
	}
	return out
}

func endShape(c, toward grid.Cell) Shape {
	switch {
	case toward.X < c.X:
		return ShapeEndLeft
	case toward.Y < c.Y:
		return ShapeEndDown
	case toward.X > c.X:
		return ShapeEndRight
	default:
		return ShapeEndUp
	}
}

func midShape(prev, c, next grid.Cell) Shape {
	if prev.X == next.X {
		return ShapeVertical
	}
	if prev.Y == next.Y {
		return ShapeHorizontal
	}
	left := prev.X < c.X || next.X < c.X
	down := prev.Y < c.Y || next.Y < c.Y
	switch {
	case left && down:
		return ShapeCornerLeftDown
	case down:
		return ShapeCornerRightDown
	case left:
		return ShapeCornerLeftUp
	default:
		return ShapeCornerRightUp
	}
}
