package geometry

import (
	"math"

	errorsmod "cosmossdk.io/errors"
)

// unitTolerance is how far a plane normal's length may stray from 1
const unitTolerance = 1e-9

// Plane is the oriented half-space {p : N·p + D <= 0}
type Plane struct {
	N Vector  `json:"n" yaml:"n"`
	D float64 `json:"d" yaml:"d"`
}

// NewPlane creates a plane from a normal and an offset. The normal is copied.
func NewPlane(n *Vector, d float64) Plane {
	return Plane{N: *n.Clone(), D: d}
}

// PlaneFromPoints returns the plane through three vertices, oriented by the
// right-hand rule on (p1-p0) × (p2-p0).
func PlaneFromPoints(p0, p1, p2 *Vector) (Plane, error) {
	n := p1.Clone().Sub(p0).Cross(p2.Clone().Sub(p0), nil)
	if _, err := n.Normalize(); err != nil {
		return Plane{}, errorsmod.Wrapf(err, "points %s %s %s are collinear", p0, p1, p2)
	}
	n.ApplyEps()
	return Plane{N: *n, D: -n.Dot(p0)}, nil
}

// Distance returns the signed distance from p, snapped near zero
func (pl *Plane) Distance(p *Vector) float64 {
	return RoundEps(pl.N.Dot(p) + pl.D)
}

// IsPointInside reports whether p lies on the inner side (or on the plane)
func (pl *Plane) IsPointInside(p *Vector) bool {
	return pl.Distance(p) <= 0
}

// Validate checks that the normal is unit length
func (pl *Plane) Validate() error {
	m := pl.N.Mag()
	if m == 0 {
		return errorsmod.Wrap(ErrInvalidEnvelope, "plane normal has zero length")
	}
	if math.IsNaN(m) || math.IsNaN(pl.D) || math.IsInf(pl.D, 0) {
		return errorsmod.Wrap(ErrInvalidEnvelope, "plane has non-finite components")
	}
	if math.Abs(m-1) > unitTolerance {
		return errorsmod.Wrapf(ErrInvalidEnvelope, "plane normal %s is not unit length (|n| = %g)", &pl.N, m)
	}
	return nil
}

// ValidateEnvelope checks every plane and rejects pairs of opposing parallel
// planes whose half-spaces do not overlap.
func ValidateEnvelope(envelope []Plane) error {
	if len(envelope) == 0 {
		return errorsmod.Wrap(ErrInvalidEnvelope, "envelope has no planes")
	}
	for i := range envelope {
		if err := envelope[i].Validate(); err != nil {
			return errorsmod.Wrapf(err, "plane %d", i)
		}
	}
	for i := range envelope {
		for j := i + 1; j < len(envelope); j++ {
			a, b := &envelope[i], &envelope[j]
			if RoundEps(a.N.Dot(&b.N)+1) != 0 {
				continue
			}
			// n·p <= -a.D and n·p >= b.D
			if RoundEps(a.D+b.D) > 0 {
				return errorsmod.Wrapf(ErrInvalidEnvelope, "planes %d and %d do not intersect", i, j)
			}
		}
	}
	return nil
}
