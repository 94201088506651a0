package types

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/oxygene76/fractaltree/pkg/colonization"
	"github.com/oxygene76/fractaltree/pkg/geometry"
)

// GrowthResult represents the outcome of growing one tree
type GrowthResult struct {
	ID        string                 `json:"id"`
	Status    string                 `json:"status"`
	Stats     *colonization.RunStats `json:"stats,omitempty"`
	Sampling  SampleSummary          `json:"sampling"`
	Metadata  GrowthMetadata         `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
	Error     string                 `json:"error,omitempty"`
}

// GrowthMetadata contains the inputs of a growth run
type GrowthMetadata struct {
	Preset     string  `json:"preset"`
	Attractors int     `json:"attractors"`
	RMin       float64 `json:"rmin"`
	RMax       float64 `json:"rmax"`
	Seed       uint64  `json:"seed"`
	OutputFile string  `json:"output_file,omitempty"`
	Version    string  `json:"version"`
}

// SampleSummary describes a set of weighted attractors
type SampleSummary struct {
	Count      int        `json:"count"`
	Requested  int        `json:"requested"`
	Iterations int        `json:"iterations"`
	Centroid   [3]float64 `json:"centroid"`
	MinZ       float64    `json:"min_z"`
	MaxZ       float64    `json:"max_z"`
	MinWeight  float64    `json:"min_weight"`
	MaxWeight  float64    `json:"max_weight"`
	MeanWeight float64    `json:"mean_weight"`
}

// Version is reported in result metadata
const Version = "1.0.0"

// SummarizeAttractors computes a SampleSummary. Attractors must be sorted by z.
func SummarizeAttractors(attractors []colonization.AttractionPoint, requested, iterations int) SampleSummary {
	s := SampleSummary{Count: len(attractors), Requested: requested, Iterations: iterations}
	if len(attractors) == 0 {
		return s
	}

	weights := make([]float64, len(attractors))
	points := make([]geometry.Vector, len(attractors))
	for k := range attractors {
		weights[k] = attractors[k].Weight
		points[k] = attractors[k].Pos
	}

	s.Centroid = colonization.Centroid(points).Array()
	s.MinZ = attractors[0].Pos.Z
	s.MaxZ = attractors[len(attractors)-1].Pos.Z
	s.MinWeight = floats.Min(weights)
	s.MaxWeight = floats.Max(weights)
	s.MeanWeight = stat.Mean(weights, nil)
	return s
}
