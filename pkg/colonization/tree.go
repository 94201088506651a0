package colonization

import (
	"context"

	errorsmod "cosmossdk.io/errors"

	"github.com/oxygene76/fractaltree/pkg/geometry"
)

// FractalTree grows a branching structure by space colonization.
//
// The engine is single-threaded. Callers invoke Grow once per tick and may read
// Nodes and Attractors between calls; both slices are owned by the tree and
// must not be modified.
type FractalTree struct {
	opts       Options
	nodes      []TreeNode
	attractors []AttractionPoint
	sampled    int
	iterations int
	tick       int
}

// New samples the attraction points, weights them and grows the initial stem
// from root until an attractor lies within the influence radius.
func New(root TreeNode, opts Options) (*FractalTree, error) {
	return NewWithContext(context.Background(), root, opts)
}

// NewWithContext is New with stem growth stopped early when ctx is done.
func NewWithContext(ctx context.Context, root TreeNode, opts Options) (*FractalTree, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := validateRoot(&root); err != nil {
		return nil, err
	}

	t := &FractalTree{
		opts:  opts,
		nodes: []TreeNode{root},
	}
	if err := t.init(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *FractalTree) init(ctx context.Context) error {
	points := t.opts.Attractors
	if points == nil {
		res := SampleEnvelope(t.opts.Envelope, t.opts.N, t.opts.maxIterations(), t.opts.random())
		t.iterations = res.Iterations
		t.opts.logf("Sampled %d of %d attractors in %d iterations", len(res.Points), t.opts.N, res.Iterations)
		if len(res.Points) == 0 {
			return errorsmod.Wrapf(ErrInvalidEnvelope, "no interior point found in %d iterations", res.Iterations)
		}
		points = res.Points
	}
	t.attractors = PrepareAttractors(points)
	t.sampled = len(t.attractors)

	if len(t.attractors) == 0 {
		return nil
	}
	if err := t.growStem(ctx); err != nil {
		return err
	}
	tip := &t.nodes[len(t.nodes)-1]
	t.opts.logf("Stem grow completed: %d nodes, tip at %s", len(t.nodes), &tip.Pos)
	return nil
}

// stemCheckInterval is how many stem steps pass between context checks
const stemCheckInterval = 1024

// growStem extends the tip one step at a time while no unreached attractor is
// within the influence radius.
func (t *FractalTree) growStem(ctx context.Context) error {
	for steps := 0; !t.attractorInRange(len(t.nodes) - 1); steps++ {
		if t.opts.MaxStemSteps > 0 && steps >= t.opts.MaxStemSteps {
			return errorsmod.Wrapf(ErrUnboundedStem, "no attractor within rmax after %d steps", steps)
		}
		if steps%stemCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		tip := len(t.nodes) - 1
		t.nodes = append(t.nodes, t.nodes[tip].Next(tip))
	}
	return nil
}

func (t *FractalTree) attractorInRange(index int) bool {
	pos := &t.nodes[index].Pos
	for k := range t.attractors {
		if !t.attractors[k].Reached && pos.DistSq(&t.attractors[k].Pos) < t.opts.RMax {
			return true
		}
	}
	return false
}

// Grow runs one colonization pass and returns the number of new nodes.
// Calling it on a completed tree is a no-op.
//
// The kill test takes the first node (in list order) within the kill radius,
// not the nearest one.
func (t *FractalTree) Grow() int {
	if t.IsCompleted() {
		return 0
	}
	t.tick++

	for a := range t.attractors {
		attractor := &t.attractors[a]
		if attractor.Reached {
			continue
		}

		closest := -1
		rmin := 0.0
		for k := range t.nodes {
			r := t.nodes[k].Pos.DistSq(&attractor.Pos)
			if r < t.opts.RMin {
				attractor.Reached = true
				break
			}
			if closest < 0 || r < rmin {
				rmin = r
				closest = k
			}
		}

		if closest >= 0 && !attractor.Reached {
			node := &t.nodes[closest]
			// r >= RMin > 0, so the offset is never degenerate
			f := attractor.Pos.Clone().Sub(&node.Pos).MustNormalize().Scale(attractor.Weight)
			node.ApplyForce(f)
		}
	}

	t.removeReached()

	grown := 0
	for k := len(t.nodes) - 1; k >= 0; k-- {
		node := &t.nodes[k]
		var child *TreeNode
		if node.Count > 0 {
			node.Dir.Add(&node.Force).Scale(1 / float64(1+node.Count))
			next := node.Next(k)
			child = &next
		}
		node.Reset()
		// append after the last use of node: it may reallocate the arena
		if child != nil {
			t.nodes = append(t.nodes, *child)
			grown++
		}
	}
	return grown
}

func (t *FractalTree) removeReached() {
	kept := t.attractors[:0]
	for _, a := range t.attractors {
		if !a.Reached {
			kept = append(kept, a)
		}
	}
	t.attractors = kept
}

// IsCompleted reports whether every attractor has been reached
func (t *FractalTree) IsCompleted() bool {
	for k := range t.attractors {
		if !t.attractors[k].Reached {
			return false
		}
	}
	return true
}

// Nodes returns the append-only node list; Nodes()[0] is the root
func (t *FractalTree) Nodes() []TreeNode {
	return t.nodes
}

// Attractors returns the remaining attraction points
func (t *FractalTree) Attractors() []AttractionPoint {
	return t.attractors
}

// Root returns the first node
func (t *FractalTree) Root() *TreeNode {
	return &t.nodes[0]
}

// Tick returns the number of colonization passes run so far
func (t *FractalTree) Tick() int {
	return t.tick
}

// SampledCount returns how many attractors the tree started with
func (t *FractalTree) SampledCount() int {
	return t.sampled
}

// SampleIterations returns the number of hit-and-run steps taken
func (t *FractalTree) SampleIterations() int {
	return t.iterations
}

// Progress returns the fraction of attractors consumed, in [0, 1]
func (t *FractalTree) Progress() float64 {
	if t.sampled == 0 {
		return 1
	}
	return float64(t.sampled-len(t.attractors)) / float64(t.sampled)
}

// Options returns the options the tree was built with
func (t *FractalTree) Options() Options {
	return t.opts
}

// Bounds returns the axis-aligned box around all nodes
func (t *FractalTree) Bounds() (lo, hi geometry.Vector) {
	lo, hi = t.nodes[0].Pos, t.nodes[0].Pos
	for k := range t.nodes {
		p := &t.nodes[k].Pos
		if p.X < lo.X {
			lo.X = p.X
		}
		if p.Y < lo.Y {
			lo.Y = p.Y
		}
		if p.Z < lo.Z {
			lo.Z = p.Z
		}
		if p.X > hi.X {
			hi.X = p.X
		}
		if p.Y > hi.Y {
			hi.Y = p.Y
		}
		if p.Z > hi.Z {
			hi.Z = p.Z
		}
	}
	return lo, hi
}
