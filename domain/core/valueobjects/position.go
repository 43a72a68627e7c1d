package valueobjects

import (
	"errors"
	"math"
	"math/rand"
)

// Scatter bounds for freshly created nodes. New nodes land inside this
// window so they don't stack on top of each other on the canvas.
const (
	scatterMinX   = 50.0
	scatterSpanX  = 400.0
	scatterMinY   = 50.0
	scatterSpanY  = 300.0
)

// Position is a value object representing node coordinates on the canvas
type Position struct {
	x float64
	y float64
}

// NewPosition creates a position with validation
func NewPosition(x, y float64) (Position, error) {
	if !isValidCoordinate(x) || !isValidCoordinate(y) {
		return Position{}, errors.New("invalid coordinates: must be finite numbers")
	}
	return Position{x: x, y: y}, nil
}

// NewScatteredPosition creates a randomly jittered position inside the
// placement window for new nodes.
func NewScatteredPosition(r *rand.Rand) Position {
	return Position{
		x: r.Float64()*scatterSpanX + scatterMinX,
		y: r.Float64()*scatterSpanY + scatterMinY,
	}
}

// X returns the X coordinate
func (p Position) X() float64 {
	return p.x
}

// Y returns the Y coordinate
func (p Position) Y() float64 {
	return p.y
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.x-other.x) < epsilon && math.Abs(p.y-other.y) < epsilon
}

// isValidCoordinate checks if a coordinate is a valid finite number
func isValidCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
