package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxygene76/fractaltree/internal/types"
	"github.com/oxygene76/fractaltree/pkg/colonization"
)

func growCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grow",
		Short: "Grow a tree and export snapshots as JSON lines",
		Long: `Builds the engine from the configuration, calls grow once per tick until
every attractor is reached (or --max-ticks), and writes snapshots to a JSONL file.

Examples:
  fractaltree grow --output tree.jsonl
  fractaltree grow --seed 42 --attractors 500 --snapshot-every 5
  fractaltree grow --view isometric`,
		RunE: runGrow,
	}

	cmd.Flags().String("output", "", "snapshot file (default from config)")
	cmd.Flags().Int("max-ticks", -1, "maximum number of ticks (default from config, 0 = until completed)")
	cmd.Flags().Int("snapshot-every", -1, "snapshot interval in ticks (default from config)")
	cmd.Flags().Uint64("seed", 0, "random seed (default from config)")
	cmd.Flags().Int("attractors", 0, "number of attraction points (default from config)")
	cmd.Flags().String("preset", "", "envelope preset (default from config)")
	cmd.Flags().String("view", "", "snapshot view: none or isometric (default from config)")
	cmd.Flags().Bool("summary", false, "print the result summary as JSON")

	return cmd
}

func runGrow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Run.Output = v
	}
	if v, _ := cmd.Flags().GetInt("max-ticks"); v >= 0 {
		cfg.Run.MaxTicks = v
	}
	if v, _ := cmd.Flags().GetInt("snapshot-every"); v >= 0 {
		cfg.Run.SnapshotEvery = v
	}
	if cmd.Flags().Changed("seed") {
		cfg.Tree.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	if v, _ := cmd.Flags().GetInt("attractors"); v > 0 {
		cfg.Tree.Attractors = v
	}
	if v, _ := cmd.Flags().GetString("preset"); v != "" {
		cfg.Envelope.Preset = v
	}
	if v, _ := cmd.Flags().GetString("view"); v != "" {
		cfg.Run.View = v
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	root, opts, err := cfg.BuildOptions()
	if err != nil {
		return err
	}
	opts.Logger = engineLogger(cfg)

	log.Printf("Growing tree: %d attractors, preset %s, seed %d", cfg.Tree.Attractors, cfg.Envelope.Preset, cfg.Tree.Seed)
	start := time.Now()

	tree, err := colonization.New(root, opts)
	if err != nil {
		return fmt.Errorf("failed to build tree: %w", err)
	}
	sampling := types.SummarizeAttractors(tree.Attractors(), cfg.Tree.Attractors, tree.SampleIterations())
	if sampling.Count < sampling.Requested {
		log.Printf("Warning: sampled only %d of %d attractors", sampling.Count, sampling.Requested)
	}

	writer, err := colonization.NewJSONLSnapshotWriter(cfg.Run.Output)
	if err != nil {
		return err
	}
	defer writer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	runOpts := cfg.RunOptions()
	if cfg.IsVerbose() {
		runOpts.OnTick = func(t *colonization.FractalTree, grown int) {
			if t.Tick()%100 == 0 {
				log.Printf("Tick %d: %d nodes (+%d), %d attractors left", t.Tick(), len(t.Nodes()), grown, len(t.Attractors()))
			}
		}
	}

	stats, err := colonization.Run(ctx, tree, runOpts, writer)
	if err != nil {
		return fmt.Errorf("growth stopped: %w", err)
	}

	if stats.Completed {
		log.Printf("Tree completed in %d ticks: %d nodes (%v)", stats.Ticks, stats.Nodes, time.Since(start))
	} else {
		log.Printf("Stopped after %d ticks with %d attractors left: %d nodes", stats.Ticks, stats.Remaining, stats.Nodes)
	}
	log.Printf("Snapshots written to %s", cfg.Run.Output)

	if summary, _ := cmd.Flags().GetBool("summary"); summary {
		result := types.GrowthResult{
			ID:       fmt.Sprintf("grow_%d", time.Now().Unix()),
			Status:   "completed",
			Stats:    stats,
			Sampling: sampling,
			Metadata: types.GrowthMetadata{
				Preset:     cfg.Envelope.Preset,
				Attractors: cfg.Tree.Attractors,
				RMin:       cfg.Tree.RMin,
				RMax:       cfg.Tree.RMax,
				Seed:       cfg.Tree.Seed,
				OutputFile: cfg.Run.Output,
				Version:    types.Version,
			},
			Timestamp: time.Now(),
		}
		if !stats.Completed {
			result.Status = "incomplete"
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return nil
}

func sampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample attraction points only and print statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Tree.Seed, _ = cmd.Flags().GetUint64("seed")
			}
			if v, _ := cmd.Flags().GetInt("attractors"); v > 0 {
				cfg.Tree.Attractors = v
			}

			_, opts, err := cfg.BuildOptions()
			if err != nil {
				return err
			}

			maxIter := cfg.Tree.MaxIterations
			if maxIter <= 0 {
				maxIter = colonization.DefaultMaxIterations
			}
			res := colonization.SampleEnvelope(opts.Envelope, opts.N, maxIter, opts.Rand)
			summary := types.SummarizeAttractors(colonization.PrepareAttractors(res.Points), opts.N, res.Iterations)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().Uint64("seed", 0, "random seed (default from config)")
	cmd.Flags().Int("attractors", 0, "number of attraction points (default from config)")

	return cmd
}
