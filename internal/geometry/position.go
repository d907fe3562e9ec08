// Package geometry holds the screen-space position type used by the pointer
// controller, along with tolerance comparison and interpolation.
package geometry

import (
	"fmt"
	"math"
)

// Position is a point in screen pixel space.
type Position struct {
	X int
	Y int
}

// Pt is shorthand for Position{X: x, Y: y}.
func Pt(x, y int) Position {
	return Position{X: x, Y: y}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Add adds two Positions.
func (p Position) Add(q Position) Position {
	return Position{X: p.X + q.X, Y: p.Y + q.Y}
}

// Subtract subtracts q from p.
func (p Position) Subtract(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y}
}

// HasZeroAxis reports whether either coordinate is zero.
func (p Position) HasZeroAxis() bool {
	return p.X == 0 || p.Y == 0
}

// Distance returns the straight-line distance between a and b in pixels.
func Distance(a, b Position) float64 {
	return math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
}

// Lerp linearly interpolates each axis from a to b and truncates the result
// toward zero. Rounding would overshoot the last step before the destination.
func Lerp(a, b Position, t float64) Position {
	return Position{
		X: lerp(a.X, b.X, t),
		Y: lerp(a.Y, b.Y, t),
	}
}

func lerp(a, b int, t float64) int {
	return int(float64(a) + t*float64(b-a))
}

// IsWithinTolerance reports whether both axes of a and b deviate by no more
// than tolerancePercent, where the deviation of an axis is the absolute
// difference relative to the midpoint of the two values.
//
// Points with a zero coordinate are never within tolerance, nor are axes whose
// midpoint is zero.
func IsWithinTolerance(a, b Position, tolerancePercent float64) bool {
	if a.HasZeroAxis() || b.HasZeroAxis() {
		return false
	}
	return axisWithin(a.X, b.X, tolerancePercent) && axisWithin(a.Y, b.Y, tolerancePercent)
}

func axisWithin(a, b int, tolerancePercent float64) bool {
	mid := math.Abs(float64(a+b) / 2)
	if mid == 0 {
		return false
	}
	deviation := math.Abs(float64(a-b)) * 100 / mid
	return deviation <= tolerancePercent
}
