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

	"github.com/oxygene76/fractaltree/pkg/client"
	"github.com/oxygene76/fractaltree/pkg/colonization"
	"github.com/oxygene76/fractaltree/pkg/jobs"
)

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit the configured tree to a running growth service",
		Long: `Submit a growth job to a service started with "fractaltree serve".

Examples:
  fractaltree submit --server http://localhost:8080 --wait
  fractaltree submit --stream --output remote.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			server, _ := cmd.Flags().GetString("server")
			wait, _ := cmd.Flags().GetBool("wait")
			stream, _ := cmd.Flags().GetBool("stream")
			output, _ := cmd.Flags().GetString("output")
			if cmd.Flags().Changed("seed") {
				cfg.Tree.Seed, _ = cmd.Flags().GetUint64("seed")
			}

			gc, err := client.NewGrowthClient(server)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			job, err := gc.SubmitJob(ctx, cfg)
			if err != nil {
				return fmt.Errorf("job submission failed: %w", err)
			}
			fmt.Printf("Job %s %s\n", job.ID, job.Status)

			switch {
			case stream:
				job, err = streamJob(ctx, gc, job, output)
			case wait:
				job, err = gc.WaitForJob(ctx, job.ID, 500*time.Millisecond)
			default:
				return nil
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		},
	}

	cmd.Flags().String("server", "http://localhost:8080", "growth service url")
	cmd.Flags().Bool("wait", false, "wait for the job to finish")
	cmd.Flags().Bool("stream", false, "stream snapshots while the job runs")
	cmd.Flags().String("output", "", "write streamed snapshots to this JSONL file")
	cmd.Flags().Uint64("seed", 0, "random seed (default from config)")

	return cmd
}

func streamJob(ctx context.Context, gc *client.GrowthClient, job *jobs.GrowthJob, output string) (*jobs.GrowthJob, error) {
	var (
		w      *colonization.JSONLSnapshotWriter
		export *remoteExport
	)
	if output != "" {
		envelope, err := job.Config.BuildEnvelope()
		if err != nil {
			return nil, err
		}
		if w, err = colonization.NewJSONLSnapshotWriter(output); err != nil {
			return nil, err
		}
		export = &remoteExport{
			sink: w,
			meta: colonization.RunMeta{
				RMin:     job.Config.Tree.RMin,
				RMax:     job.Config.Tree.RMax,
				Envelope: envelope,
			},
		}
	}

	received := 0
	final, err := gc.StreamSnapshots(ctx, job.ID, func(s *colonization.Snapshot) error {
		received++
		if export != nil {
			if err := export.add(s); err != nil {
				return err
			}
		}
		log.Printf("Tick %d: %d nodes, %d attractors left", s.Tick, len(s.Nodes), len(s.Attractors))
		return nil
	})
	if export != nil {
		if ferr := export.finish(err == nil); ferr != nil && err == nil {
			err = ferr
		}
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to write %s: %w", output, cerr)
		}
	}
	if err != nil {
		return final, err
	}
	log.Printf("Received %d snapshots", received)
	if final == nil {
		return gc.GetJob(ctx, job.ID)
	}
	return final, nil
}

// remoteExport lays out streamed snapshots like a local grow export: a start
// record, the snapshots, and the last snapshot as the end record
type remoteExport struct {
	sink    colonization.SnapshotSink
	meta    colonization.RunMeta
	started bool
	pending *colonization.Snapshot
}

// add holds s back until the next snapshot arrives, since only the stream's
// end tells which one is final
func (e *remoteExport) add(s *colonization.Snapshot) error {
	if !e.started {
		e.meta.Attractors = len(s.Attractors)
		e.meta.Nodes = len(s.Nodes)
		if err := e.sink.OnStart(e.meta); err != nil {
			return err
		}
		e.started = true
	}
	if e.pending != nil {
		if err := e.sink.OnSnapshot(e.pending); err != nil {
			return err
		}
	}
	e.pending = s
	return nil
}

// finish writes the held snapshot, as the end record when the stream ended normally
func (e *remoteExport) finish(ended bool) error {
	s := e.pending
	e.pending = nil
	switch {
	case s == nil:
		return nil
	case ended:
		return e.sink.OnEnd(s)
	default:
		return e.sink.OnSnapshot(s)
	}
}
