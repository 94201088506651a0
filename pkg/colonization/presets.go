package colonization

import (
	"sort"

	"github.com/oxygene76/fractaltree/pkg/geometry"
)

// EnvelopePreset builds a named envelope
type EnvelopePreset struct {
	Name        string
	Description string
	Build       func() ([]geometry.Plane, error)
}

var presets = map[string]EnvelopePreset{
	"crown": {
		Name:        "crown",
		Description: "tapered crown between z=1.5 and z=5 with sloped sides",
		Build:       func() ([]geometry.Plane, error) { return CrownEnvelope(), nil },
	},
	"box": {
		Name:        "box",
		Description: "axis-aligned cube [-1,1]^3",
		Build:       func() ([]geometry.Plane, error) { return BoxEnvelope(1), nil },
	},
	"pyramid": {
		Name:        "pyramid",
		Description: "square pyramid from z=1 (4x4 base) to an apex at z=6",
		Build:       PyramidEnvelope,
	},
}

// LookupPreset returns the preset registered under name
func LookupPreset(name string) (EnvelopePreset, bool) {
	p, ok := presets[name]
	return p, ok
}

// Presets lists all presets sorted by name
func Presets() []EnvelopePreset {
	out := make([]EnvelopePreset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func unitPlane(x, y, z, d float64) geometry.Plane {
	return geometry.NewPlane(geometry.NewVector(x, y, z).MustNormalize(), d)
}

// CrownEnvelope is the default tree crown
func CrownEnvelope() []geometry.Plane {
	return []geometry.Plane{
		unitPlane(-1, 0, .4, -2),
		unitPlane(1, 0, .4, -2),
		unitPlane(0, -1, .4, -2),
		unitPlane(0, 1, .4, -2),
		unitPlane(0, 0, 1, -5),
		unitPlane(0, 0, -1, 1.5),
	}
}

// BoxEnvelope is the cube [-half, half]^3
func BoxEnvelope(half float64) []geometry.Plane {
	return []geometry.Plane{
		unitPlane(1, 0, 0, -half),
		unitPlane(-1, 0, 0, -half),
		unitPlane(0, 1, 0, -half),
		unitPlane(0, -1, 0, -half),
		unitPlane(0, 0, 1, -half),
		unitPlane(0, 0, -1, -half),
	}
}

// PyramidEnvelope is built from its vertices with PlaneFromPoints
func PyramidEnvelope() ([]geometry.Plane, error) {
	a := geometry.NewVector(-2, -2, 1)
	b := geometry.NewVector(2, -2, 1)
	c := geometry.NewVector(2, 2, 1)
	d := geometry.NewVector(-2, 2, 1)
	apex := geometry.NewVector(0, 0, 6)

	faces := [][3]*geometry.Vector{
		{a, c, b},
		{a, b, apex},
		{b, c, apex},
		{c, d, apex},
		{d, a, apex},
	}
	envelope := make([]geometry.Plane, 0, len(faces))
	for _, f := range faces {
		pl, err := geometry.PlaneFromPoints(f[0], f[1], f[2])
		if err != nil {
			return nil, err
		}
		envelope = append(envelope, pl)
	}
	return envelope, nil
}
