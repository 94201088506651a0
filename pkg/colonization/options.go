package colonization

import (
	"log"
	"math"

	errorsmod "cosmossdk.io/errors"
	"golang.org/x/exp/rand"

	"github.com/oxygene76/fractaltree/pkg/geometry"
)

const (
	// DefaultMaxIterations caps the hit-and-run walk
	DefaultMaxIterations = 1_000_000

	// DefaultSeed seeds the sampler when Options.Rand is nil
	DefaultSeed uint64 = 1
)

// RandomSource yields uniform values in [0, 1)
type RandomSource interface {
	Float64() float64
}

// Options configures a FractalTree
type Options struct {
	// Envelope bounds the attraction points (the crown)
	Envelope []geometry.Plane
	// N is the number of attraction points to sample
	N int
	// RMin is the squared kill radius
	RMin float64
	// RMax is the squared influence radius, only used while growing the stem
	RMax float64

	// MaxIterations caps the sampling walk; zero means DefaultMaxIterations
	MaxIterations int
	// MaxStemSteps caps stem growth; zero means unlimited
	MaxStemSteps int

	// Rand drives sampling; nil uses a source seeded with DefaultSeed
	Rand RandomSource

	// Attractors, when set, replace sampling with fixed positions
	Attractors []geometry.Vector

	// Logger receives progress lines; nil disables logging
	Logger *log.Logger
}

// NewRandomSource returns a seeded source
func NewRandomSource(seed uint64) RandomSource {
	return rand.New(rand.NewSource(seed))
}

func (o *Options) maxIterations() int {
	if o.MaxIterations > 0 {
		return o.MaxIterations
	}
	return DefaultMaxIterations
}

func (o *Options) random() RandomSource {
	if o.Rand == nil {
		o.Rand = NewRandomSource(DefaultSeed)
	}
	return o.Rand
}

func (o *Options) logf(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
}

// Validate checks thresholds and the envelope
func (o *Options) Validate() error {
	if !(o.RMin > 0) || math.IsInf(o.RMin, 0) {
		return errorsmod.Wrapf(ErrInvalidOptions, "rmin must be positive, got %g", o.RMin)
	}
	if !(o.RMax > o.RMin) || math.IsInf(o.RMax, 0) {
		return errorsmod.Wrapf(ErrInvalidOptions, "rmax (%g) must exceed rmin (%g)", o.RMax, o.RMin)
	}
	if o.MaxIterations < 0 || o.MaxStemSteps < 0 {
		return errorsmod.Wrap(ErrInvalidOptions, "iteration caps cannot be negative")
	}
	if o.Attractors != nil {
		for i := range o.Attractors {
			if !o.Attractors[i].IsFinite() {
				return errorsmod.Wrapf(ErrInvalidOptions, "attractor %d at %s is not finite", i, &o.Attractors[i])
			}
		}
		if len(o.Envelope) == 0 {
			return nil
		}
		return geometry.ValidateEnvelope(o.Envelope)
	}
	if o.N <= 0 {
		return errorsmod.Wrapf(ErrInvalidOptions, "attractor count must be positive, got %d", o.N)
	}
	return geometry.ValidateEnvelope(o.Envelope)
}

func validateRoot(root *TreeNode) error {
	if !root.IsRoot() {
		return errorsmod.Wrapf(ErrInvalidOptions, "root node has parent %d", root.Parent)
	}
	if !root.Pos.IsFinite() {
		return errorsmod.Wrapf(ErrInvalidOptions, "root position %s is not finite", &root.Pos)
	}
	m := root.Dir.Mag()
	if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return errorsmod.Wrapf(ErrInvalidOptions, "root direction %s has no length", &root.Dir)
	}
	return nil
}
