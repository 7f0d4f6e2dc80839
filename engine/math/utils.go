package math

import (
	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
)

const (
	Pi                float32 = math32.Pi
	TwoPi             float32 = 2.0 * Pi
	HalfPi            float32 = 0.5 * Pi
	Deg2RadMultiplier float32 = Pi / 180.0
	Rad2DegMultiplier float32 = 180.0 / Pi
	SecToMsMultiplier float32 = 1000.0
	MsToSecMultiplier float32 = 0.001
	FloatEpsilon      float32 = 1.192092896e-07
	DefaultCompareTol float32 = 1e-5
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// DegToRad converts degrees to radians.
func DegToRad(degrees float32) float32 {
	return degrees * Deg2RadMultiplier
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float32) float32 {
	return radians * Rad2DegMultiplier
}

func approxEqual(a, b, tolerance float32) bool {
	return math32.Abs(a-b) <= tolerance
}
