package colonization

import "github.com/oxygene76/fractaltree/pkg/geometry"

// AttractionPoint is a sampled target that pulls the closest tree node
type AttractionPoint struct {
	Pos     geometry.Vector
	Reached bool
	Weight  float64
}

// NewAttractionPoint creates an unreached attractor with weight 1
func NewAttractionPoint(pos *geometry.Vector) AttractionPoint {
	return AttractionPoint{Pos: *pos.Clone(), Weight: 1}
}
