package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertVec(t *testing.T, want [3]float64, got *Vector) {
	t.Helper()
	for i, g := range got.Array() {
		assert.InDelta(t, want[i], g, tolerance, "component %d", i)
	}
}

func TestMatrixZeroValueIsIdentity(t *testing.T) {
	var m Matrix4
	assert.Equal(t, NewMatrix4().Rows(), m.Rows())

	v := NewVector(1, 2, 3)
	assertVec(t, [3]float64{1, 2, 3}, v.ApplyTransform(m, nil))
}

func TestMatrixTranslation(t *testing.T) {
	v := NewVector(1, 1, 1)
	out := NullVector()
	ret := v.ApplyTransform(ForTranslation(1, 2, 3), out)

	assert.Same(t, out, ret)
	assertVec(t, [3]float64{2, 3, 4}, out)
	assert.Equal(t, 1.0, out.W)
	assertVec(t, [3]float64{1, 1, 1}, v)
}

func TestMatrixRotationsMatchVectorRotations(t *testing.T) {
	angle := 0.7
	p := NewVector(0.3, -1.2, 2.5)

	assertVec(t, p.Clone().RotateX(angle).Array(), p.ApplyTransform(ForRotationX(angle), nil))
	assertVec(t, p.Clone().RotateZ(angle).Array(), p.ApplyTransform(ForRotationZ(angle), nil))

	// Ry maps z onto x for +90°
	assertVec(t, [3]float64{1, 0, 0}, NewVector(0, 0, 1).ApplyTransform(ForRotationY(HalfPi), nil))
}

func TestMatrixMultComposes(t *testing.T) {
	rx := ForRotationX(0.4)
	rz := ForRotationZ(-1.1)
	p := NewVector(1, 2, 3)

	composed := p.ApplyTransform(rx.Mult(rz), nil)
	stepwise := p.ApplyTransform(rz, nil).ApplyTransform(rx, nil)
	assertVec(t, stepwise.Array(), composed)
}

func TestIsometricView(t *testing.T) {
	p := NewVector(1, 0.5, 2)
	want := p.Clone().RotateZ(ToRadian(45)).RotateX(ToRadian(35.26 - 100))
	assertVec(t, want.Array(), p.ApplyTransform(IsometricView(), nil))

	// rotations preserve length
	assert.InDelta(t, p.Mag(), p.ApplyTransform(IsometricView(), nil).Mag(), tolerance)
}

func TestRoundEps(t *testing.T) {
	assert.Equal(t, 0.0, RoundEps(EPS))
	assert.Equal(t, 0.0, RoundEps(-EPS/2))
	assert.Equal(t, 2*EPS, RoundEps(2*EPS))
	assert.InDelta(t, math.Pi, ToRadian(180), tolerance)
}
