package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func TestVectorArithmeticMutatesReceiver(t *testing.T) {
	v := NewVector(1, 2, 3)
	ret := v.Add(NewVector(1, 1, 1)).Scale(2).Sub(NewVector(0, 2, 4))

	assert.Same(t, v, ret)
	assert.Equal(t, [3]float64{4, 4, 4}, v.Array())
	assert.Equal(t, 1.0, v.W)
}

func TestVectorCloneIsIndependent(t *testing.T) {
	v := &Vector{X: 1, Y: 2, Z: 3, W: 5}
	c := v.Clone()
	c.Add(NewVector(1, 1, 1))

	assert.Equal(t, [3]float64{1, 2, 3}, v.Array())
	assert.Equal(t, [3]float64{2, 3, 4}, c.Array())
	assert.Equal(t, 1.0, c.W)
}

func TestVectorDistances(t *testing.T) {
	a := NewVector(1, -2, 0.5)
	b := NewVector(-3, 4, 2)

	assert.Equal(t, a.DistSq(b), b.DistSq(a))
	assert.InDelta(t, 16+36+2.25, a.DistSq(b), tolerance)
	assert.InDelta(t, math.Sqrt(54.25), a.Dist(b), tolerance)
	assert.Zero(t, a.Dist(a))
	assert.InDelta(t, 1+4+0.25, a.MagSq(), tolerance)
}

func TestVectorNormalize(t *testing.T) {
	cases := []*Vector{
		NewVector(3, 4, 0),
		NewVector(-1, -1, -1),
		NewVector(1e-6, 0, 0),
		NewVector(0, 0, 250),
	}
	for _, v := range cases {
		_, err := v.Normalize()
		require.NoError(t, err)
		assert.InDelta(t, 1, v.Mag(), tolerance)
	}
}

func TestVectorIsFinite(t *testing.T) {
	assert.True(t, NewVector(1, -2, 1e300).IsFinite())
	assert.False(t, NewVector(math.NaN(), 0, 0).IsFinite())
	assert.False(t, NewVector(0, math.Inf(-1), 0).IsFinite())
	assert.False(t, NewVector(0, 0, math.Inf(1)).IsFinite())
}

func TestVectorNormalizeDegenerate(t *testing.T) {
	v := NullVector()
	ret, err := v.Normalize()
	require.ErrorIs(t, err, ErrDegenerateVector)
	assert.Same(t, v, ret)
	assert.Equal(t, [3]float64{0, 0, 0}, v.Array())

	nan := NewVector(math.NaN(), 0, 0)
	_, err = nan.Normalize()
	require.ErrorIs(t, err, ErrDegenerateVector)

	assert.Panics(t, func() { NullVector().MustNormalize() })
}

func TestVectorCross(t *testing.T) {
	x := NewVector(1, 0, 0)
	y := NewVector(0, 1, 0)

	z := x.Cross(y, nil)
	assert.Equal(t, [3]float64{0, 0, 1}, z.Array())
	assert.Equal(t, [3]float64{1, 0, 0}, x.Array())

	out := NewVector(9, 9, 9)
	ret := y.Cross(x, out)
	assert.Same(t, out, ret)
	assert.Equal(t, [3]float64{0, 0, -1}, out.Array())

	a := NewVector(1.5, -2, 0.3)
	b := NewVector(0.2, 4, -1)
	c := a.Cross(b, nil)
	assert.InDelta(t, 0, c.Dot(a), tolerance)
	assert.InDelta(t, 0, c.Dot(b), tolerance)
}

func TestVectorApplyEps(t *testing.T) {
	v := NewVector(1e-13, -5e-13, 0.5).ApplyEps()
	assert.Equal(t, [3]float64{0, 0, 0.5}, v.Array())

	w := NewVector(2e-12, 0, 0).ApplyEps()
	assert.Equal(t, 2e-12, w.X)
}

func TestVectorRotations(t *testing.T) {
	v := NewVector(1, 0, 0).RotateZ(HalfPi)
	assert.InDelta(t, 0, v.X, tolerance)
	assert.InDelta(t, 1, v.Y, tolerance)

	w := NewVector(0, 1, 0).RotateX(HalfPi)
	assert.InDelta(t, 0, w.Y, tolerance)
	assert.InDelta(t, 1, w.Z, tolerance)

	u := NewVector(1, 2, 3).Translate(-1, -2, -3)
	assert.Equal(t, [3]float64{0, 0, 0}, u.Array())
}

func TestVectorBlend(t *testing.T) {
	a := NewVector(0, 0, 0)
	b := NewVector(2, 4, 6)

	mid := a.Blend(b, 0.5)
	assert.Equal(t, [3]float64{1, 2, 3}, mid.Array())
	assert.Equal(t, [3]float64{0, 0, 0}, a.Array())
}
