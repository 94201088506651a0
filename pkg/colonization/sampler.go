package colonization

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/oxygene76/fractaltree/pkg/geometry"
)

// MaxWeight is the pull of the attractor farthest from the centroid
const MaxWeight = 0.2

// SampleResult describes one hit-and-run run
type SampleResult struct {
	Points     []geometry.Vector
	Iterations int
}

// SampleEnvelope draws up to n points inside the intersection of the
// envelope's half-spaces by hit-and-run: starting on the first plane, each
// step moves a random fraction of the distance to the next plane (round robin)
// along that plane's normal and is kept only if it stays inside every plane.
//
// The walk stops after n accepted points or maxIter steps, whichever comes
// first. Fewer than n points is a valid result.
func SampleEnvelope(envelope []geometry.Plane, n, maxIter int, rnd RandomSource) SampleResult {
	var res SampleResult
	if len(envelope) == 0 || n <= 0 || maxIter <= 0 {
		return res
	}
	// at most one point is accepted per step
	res.Points = make([]geometry.Vector, 0, min(n, maxIter))

	i := 0
	p := envelope[0].N.Clone().Scale(-envelope[0].D)

	for len(res.Points) < n && res.Iterations < maxIter {
		i = (i + 1) % len(envelope)
		plane := &envelope[i]
		d := math.Abs(plane.Distance(p)) * rnd.Float64()
		p1 := p.Clone().Add(plane.N.Clone().Scale(d))
		if insideAll(envelope, p1) {
			res.Points = append(res.Points, *p1)
			p = p1
		}
		res.Iterations++
	}
	return res
}

func insideAll(envelope []geometry.Plane, p *geometry.Vector) bool {
	for i := range envelope {
		if !envelope[i].IsPointInside(p) {
			return false
		}
	}
	return true
}

// Centroid returns the mean position of the points
func Centroid(points []geometry.Vector) *geometry.Vector {
	if len(points) == 0 {
		return geometry.NullVector()
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	zs := make([]float64, len(points))
	for k := range points {
		xs[k], ys[k], zs[k] = points[k].X, points[k].Y, points[k].Z
	}
	return geometry.NewVector(stat.Mean(xs, nil), stat.Mean(ys, nil), stat.Mean(zs, nil))
}

// PrepareAttractors wraps the points as attractors, sorts them by ascending z
// and assigns their weights.
func PrepareAttractors(points []geometry.Vector) []AttractionPoint {
	attractors := make([]AttractionPoint, 0, len(points))
	for k := range points {
		attractors = append(attractors, NewAttractionPoint(&points[k]))
	}
	sortByZ(attractors)
	assignWeights(attractors)
	return attractors
}

// sortByZ orders attractors by ascending z, keeping ties in sampling order
func sortByZ(attractors []AttractionPoint) {
	sort.SliceStable(attractors, func(a, b int) bool {
		return attractors[a].Pos.Z < attractors[b].Pos.Z
	})
}

// assignWeights sets weight = MaxWeight * distance-to-centroid / max distance,
// so peripheral attractors pull harder. Coincident sets get weight 0.
func assignWeights(attractors []AttractionPoint) {
	if len(attractors) == 0 {
		return
	}
	points := make([]geometry.Vector, len(attractors))
	for k := range attractors {
		points[k] = attractors[k].Pos
	}
	center := Centroid(points)

	r := make([]float64, len(attractors))
	for k := range attractors {
		r[k] = attractors[k].Pos.Dist(center)
	}
	rmax := floats.Max(r)

	for k := range attractors {
		if rmax == 0 {
			attractors[k].Weight = 0
			continue
		}
		attractors[k].Weight = MaxWeight * r[k] / rmax
	}
}
