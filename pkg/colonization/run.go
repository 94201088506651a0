package colonization

import (
	"context"
	"fmt"
	"time"

	"github.com/oxygene76/fractaltree/pkg/geometry"
)

// RunOptions controls Run
type RunOptions struct {
	// MaxTicks bounds the number of Grow calls; zero means until completed
	MaxTicks int
	// SnapshotEvery emits a snapshot every n ticks; zero emits only the first and last
	SnapshotEvery int
	// View transforms snapshot positions; nil keeps world coordinates
	View *geometry.Matrix4
	// ViewRotation is post-multiplied onto View after every tick
	ViewRotation *geometry.Matrix4
	// OnTick is called after every Grow
	OnTick func(t *FractalTree, grown int)
}

// RunStats summarizes a run
type RunStats struct {
	Ticks     int           `json:"ticks"`
	Nodes     int           `json:"nodes"`
	Sampled   int           `json:"sampled"`
	Remaining int           `json:"remaining"`
	Completed bool          `json:"completed"`
	Snapshots int           `json:"snapshots"`
	Duration  time.Duration `json:"duration"`
}

// Run grows the tree until it completes, MaxTicks is reached or ctx is done.
// Snapshots go to sink, which may be nil.
func Run(ctx context.Context, t *FractalTree, opts RunOptions, sink SnapshotSink) (*RunStats, error) {
	start := time.Now()
	stats := &RunStats{Sampled: t.SampledCount()}
	view := opts.View

	emit := func(s *Snapshot) error {
		stats.Snapshots++
		return sink.OnSnapshot(s)
	}

	if sink != nil {
		meta := RunMeta{
			Attractors: t.SampledCount(),
			Nodes:      len(t.Nodes()),
			RMin:       t.opts.RMin,
			RMax:       t.opts.RMax,
			Envelope:   t.opts.Envelope,
		}
		if err := sink.OnStart(meta); err != nil {
			return stats, fmt.Errorf("snapshot sink start failed: %w", err)
		}
		if err := emit(NewSnapshot(t, view)); err != nil {
			return stats, fmt.Errorf("snapshot failed: %w", err)
		}
	}

	finish := func() *RunStats {
		stats.Ticks = t.Tick()
		stats.Nodes = len(t.Nodes())
		stats.Remaining = len(t.Attractors())
		stats.Completed = t.IsCompleted()
		stats.Duration = time.Since(start)
		return stats
	}

	ticks := 0
	for !t.IsCompleted() && (opts.MaxTicks <= 0 || ticks < opts.MaxTicks) {
		select {
		case <-ctx.Done():
			return finish(), ctx.Err()
		default:
		}

		grown := t.Grow()
		ticks++

		if view != nil && opts.ViewRotation != nil {
			rotated := view.Mult(*opts.ViewRotation)
			view = &rotated
		}
		if opts.OnTick != nil {
			opts.OnTick(t, grown)
		}
		if sink != nil && opts.SnapshotEvery > 0 && ticks%opts.SnapshotEvery == 0 && !t.IsCompleted() {
			if err := emit(NewSnapshot(t, view)); err != nil {
				return finish(), fmt.Errorf("snapshot failed at tick %d: %w", t.Tick(), err)
			}
		}
	}

	if sink != nil {
		stats.Snapshots++
		if err := sink.OnEnd(NewSnapshot(t, view)); err != nil {
			return finish(), fmt.Errorf("snapshot sink end failed: %w", err)
		}
	}
	return finish(), nil
}
