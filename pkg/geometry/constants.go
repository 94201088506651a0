package geometry

import "math"

const (
	// EPS is the snap threshold used by RoundEps and ApplyEps
	EPS = 1e-12

	TwoPi  = 2 * math.Pi
	HalfPi = math.Pi / 2

	// D2R converts degrees to radians
	D2R = math.Pi / 180
	// R2D converts radians to degrees
	R2D = 180 / math.Pi
)

// RoundEps snaps values with magnitude <= EPS to exactly zero
func RoundEps(value float64) float64 {
	if math.Abs(value) > EPS {
		return value
	}
	return 0
}

// ToRadian converts degrees to radians
func ToRadian(degrees float64) float64 {
	return D2R * degrees
}
