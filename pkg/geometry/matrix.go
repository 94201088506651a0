package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix4 is a row-major 4x4 homogeneous transform.
// The zero value behaves as the identity.
type Matrix4 struct {
	data *mat.Dense
}

// NewMatrix4 returns the identity matrix
func NewMatrix4() Matrix4 {
	return Matrix4{data: identity()}
}

// NewMatrix4FromRows builds a matrix from 16 row-major values
func NewMatrix4FromRows(values [16]float64) Matrix4 {
	return Matrix4{data: mat.NewDense(4, 4, values[:])}
}

func identity() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

func (m Matrix4) dense() *mat.Dense {
	if m.data == nil {
		return identity()
	}
	return m.data
}

// At returns the element at row i, column j
func (m Matrix4) At(i, j int) float64 {
	return m.dense().At(i, j)
}

// Mult returns m * other
func (m Matrix4) Mult(other Matrix4) Matrix4 {
	var out mat.Dense
	out.Mul(m.dense(), other.dense())
	return Matrix4{data: &out}
}

// Rows returns the 16 row-major values
func (m Matrix4) Rows() [16]float64 {
	var rows [16]float64
	d := m.dense()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			rows[i*4+j] = d.At(i, j)
		}
	}
	return rows
}

func (m Matrix4) mulVec(x, y, z, w float64) (float64, float64, float64, float64) {
	var out mat.VecDense
	out.MulVec(m.dense(), mat.NewVecDense(4, []float64{x, y, z, w}))
	return out.AtVec(0), out.AtVec(1), out.AtVec(2), out.AtVec(3)
}

// ForRotationX returns a rotation around the x axis
func ForRotationX(angle float64) Matrix4 {
	c, s := math.Cos(angle), math.Sin(angle)
	m := identity()
	m.Set(1, 1, c)
	m.Set(1, 2, -s)
	m.Set(2, 1, s)
	m.Set(2, 2, c)
	return Matrix4{data: m}
}

// ForRotationY returns a rotation around the y axis
func ForRotationY(angle float64) Matrix4 {
	c, s := math.Cos(angle), math.Sin(angle)
	m := identity()
	m.Set(0, 0, c)
	m.Set(0, 2, s)
	m.Set(2, 0, -s)
	m.Set(2, 2, c)
	return Matrix4{data: m}
}

// ForRotationZ returns a rotation around the z axis
func ForRotationZ(angle float64) Matrix4 {
	c, s := math.Cos(angle), math.Sin(angle)
	m := identity()
	m.Set(0, 0, c)
	m.Set(0, 1, -s)
	m.Set(1, 0, s)
	m.Set(1, 1, c)
	return Matrix4{data: m}
}

// ForTranslation returns a translation. The offsets sit in the last column
// so that ApplyTransform (row times column) moves points with W = 1.
func ForTranslation(tx, ty, tz float64) Matrix4 {
	m := identity()
	m.Set(0, 3, tx)
	m.Set(1, 3, ty)
	m.Set(2, 3, tz)
	return Matrix4{data: m}
}

// IsometricView is the tilted isometric camera used by the renderer:
// Rx(35.26° - 100°) * Rz(45°).
func IsometricView() Matrix4 {
	return ForRotationX(ToRadian(35.26 - 100)).Mult(ForRotationZ(ToRadian(45)))
}
