package geometry

import (
	"fmt"
	"math"

	errorsmod "cosmossdk.io/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vector is a homogeneous 3D point or direction.
//
// Methods that return *Vector mutate the receiver and return it for chaining
// (Add, Sub, Scale, Set, Null, Normalize, ApplyEps, Translate, RotateX, RotateZ).
// Clone, Cross, ApplyTransform and Blend never touch the receiver.
type Vector struct {
	X, Y, Z, W float64
}

// NewVector creates a vector with W = 1
func NewVector(x, y, z float64) *Vector {
	return &Vector{X: x, Y: y, Z: z, W: 1}
}

// NullVector returns a new zero vector
func NullVector() *Vector {
	return NewVector(0, 0, 0)
}

// FromR3 converts a gonum vector
func FromR3(v r3.Vec) *Vector {
	return NewVector(v.X, v.Y, v.Z)
}

// R3 returns the spatial part as a gonum vector
func (v *Vector) R3() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// Clone returns a copy of the spatial part; W is reset to 1
func (v *Vector) Clone() *Vector {
	return NewVector(v.X, v.Y, v.Z)
}

// Set assigns the spatial components
func (v *Vector) Set(x, y, z float64) *Vector {
	v.X = x
	v.Y = y
	v.Z = z
	return v
}

// Add adds other to v in place
func (v *Vector) Add(other *Vector) *Vector {
	v.X += other.X
	v.Y += other.Y
	v.Z += other.Z
	return v
}

// Sub subtracts other from v in place
func (v *Vector) Sub(other *Vector) *Vector {
	v.X -= other.X
	v.Y -= other.Y
	v.Z -= other.Z
	return v
}

// Scale multiplies v by s in place
func (v *Vector) Scale(s float64) *Vector {
	v.X *= s
	v.Y *= s
	v.Z *= s
	return v
}

// Null zeroes the spatial components
func (v *Vector) Null() *Vector {
	v.X = 0
	v.Y = 0
	v.Z = 0
	return v
}

// MagSq returns the squared length
func (v *Vector) MagSq() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Mag returns the length
func (v *Vector) Mag() float64 {
	return math.Sqrt(v.MagSq())
}

// IsFinite reports whether every component is neither NaN nor infinite
func (v *Vector) IsFinite() bool {
	for _, c := range v.Array() {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// DistSq returns the squared distance between v and other
func (v *Vector) DistSq(other *Vector) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// Dist returns the distance between v and other
func (v *Vector) Dist(other *Vector) float64 {
	return math.Sqrt(v.DistSq(other))
}

// Normalize scales v to unit length in place.
// A zero-length vector is left untouched and ErrDegenerateVector is returned.
func (v *Vector) Normalize() (*Vector, error) {
	m := v.Mag()
	if m == 0 || math.IsNaN(m) {
		return v, errorsmod.Wrapf(ErrDegenerateVector, "cannot normalize %s", v)
	}
	v.X /= m
	v.Y /= m
	v.Z /= m
	return v, nil
}

// MustNormalize is Normalize for operands known to be non-zero
func (v *Vector) MustNormalize() *Vector {
	if _, err := v.Normalize(); err != nil {
		panic(err)
	}
	return v
}

// Dot returns the dot product
func (v *Vector) Dot(other *Vector) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns v × other. When out is non-nil it is filled and returned instead.
func (v *Vector) Cross(other *Vector, out *Vector) *Vector {
	c := r3.Cross(v.R3(), other.R3())
	if out == nil {
		return FromR3(c)
	}
	out.X = c.X
	out.Y = c.Y
	out.Z = c.Z
	return out
}

// Translate shifts v in place
func (v *Vector) Translate(tx, ty, tz float64) *Vector {
	v.X += tx
	v.Y += ty
	v.Z += tz
	return v
}

// RotateX rotates v around the x axis in place
func (v *Vector) RotateX(angle float64) *Vector {
	c, s := math.Cos(angle), math.Sin(angle)
	y := c*v.Y - s*v.Z
	v.Z = s*v.Y + c*v.Z
	v.Y = y
	return v
}

// RotateZ rotates v around the z axis in place
func (v *Vector) RotateZ(angle float64) *Vector {
	c, s := math.Cos(angle), math.Sin(angle)
	x := c*v.X - s*v.Y
	v.Y = s*v.X + c*v.Y
	v.X = x
	return v
}

// ApplyTransform multiplies the homogeneous vector by m.
// When out is non-nil it is filled and returned instead of a new vector.
func (v *Vector) ApplyTransform(m Matrix4, out *Vector) *Vector {
	x, y, z, w := m.mulVec(v.X, v.Y, v.Z, v.W)
	if out == nil {
		return &Vector{X: x, Y: y, Z: z, W: w}
	}
	out.X = x
	out.Y = y
	out.Z = z
	out.W = w
	return out
}

// ApplyEps snaps near-zero components to zero in place
func (v *Vector) ApplyEps() *Vector {
	v.X = RoundEps(v.X)
	v.Y = RoundEps(v.Y)
	v.Z = RoundEps(v.Z)
	return v
}

// Blend returns the linear interpolation (1-w)*v + w*other
func (v *Vector) Blend(other *Vector, w float64) *Vector {
	return NewVector(
		(1-w)*v.X+w*other.X,
		(1-w)*v.Y+w*other.Y,
		(1-w)*v.Z+w*other.Z,
	)
}

// Array returns the spatial components
func (v *Vector) Array() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func (v *Vector) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}
