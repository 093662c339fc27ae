// Package heatmap models the floor-plan intensity points shown on the dashboard.
package heatmap

// MaxPoints caps how many points a single day's heatmap renders.
const MaxPoints = 50

// Point is one cell of the heatmap. X and Y are percentages of the floor plan;
// Intensity is in [0, 1].
type Point struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Intensity float64 `json:"intensity"`
}

// Clamp bounds the point to the floor plan and the intensity to [0, 1].
func (p Point) Clamp() Point {
	return Point{
		X:         clamp(p.X, 0, 100),
		Y:         clamp(p.Y, 0, 100),
		Intensity: clamp(p.Intensity, 0, 1),
	}
}

// Normalize clamps every point and truncates the list to MaxPoints.
func Normalize(points []Point) []Point {
	if len(points) > MaxPoints {
		points = points[:MaxPoints]
	}
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = p.Clamp()
	}
	return out
}

// Fallback is the placeholder heatmap used when the source is unavailable.
func Fallback() []Point {
	return []Point{
		{X: 10, Y: 90, Intensity: 0.9},
		{X: 15, Y: 90, Intensity: 0.8},
		{X: 30, Y: 70, Intensity: 0.6},
		{X: 60, Y: 50, Intensity: 0.4},
		{X: 80, Y: 20, Intensity: 0.8},
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
