package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygene76/fractaltree/pkg/client"
	"github.com/oxygene76/fractaltree/pkg/colonization"
	"github.com/oxygene76/fractaltree/pkg/jobs"
	"github.com/oxygene76/fractaltree/pkg/utils"
)

type recordingSink struct {
	kinds []string
	ticks []int
	meta  colonization.RunMeta
}

func (r *recordingSink) OnStart(meta colonization.RunMeta) error {
	r.meta = meta
	r.kinds = append(r.kinds, "start")
	r.ticks = append(r.ticks, -1)
	return nil
}

func (r *recordingSink) OnSnapshot(s *colonization.Snapshot) error {
	r.kinds = append(r.kinds, "snapshot")
	r.ticks = append(r.ticks, s.Tick)
	return nil
}

func (r *recordingSink) OnEnd(final *colonization.Snapshot) error {
	r.kinds = append(r.kinds, "end")
	r.ticks = append(r.ticks, final.Tick)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func snapshotAt(tick, nodes, attractors int) *colonization.Snapshot {
	return &colonization.Snapshot{
		Tick:       tick,
		Nodes:      make([]colonization.NodeSnapshot, nodes),
		Attractors: make([]colonization.PointSnapshot, attractors),
	}
}

func TestRemoteExportRecordLayout(t *testing.T) {
	sink := &recordingSink{}
	export := &remoteExport{sink: sink, meta: colonization.RunMeta{RMin: 0.04, RMax: 4}}

	require.NoError(t, export.add(snapshotAt(0, 3, 30)))
	require.NoError(t, export.add(snapshotAt(5, 9, 21)))
	require.NoError(t, export.add(snapshotAt(7, 12, 0)))
	require.NoError(t, export.finish(true))

	assert.Equal(t, []string{"start", "snapshot", "snapshot", "end"}, sink.kinds)
	assert.Equal(t, []int{-1, 0, 5, 7}, sink.ticks)
	assert.Equal(t, 30, sink.meta.Attractors)
	assert.Equal(t, 3, sink.meta.Nodes)
	assert.Equal(t, 4.0, sink.meta.RMax)
}

func TestRemoteExportInterruptedStream(t *testing.T) {
	sink := &recordingSink{}
	export := &remoteExport{sink: sink}

	require.NoError(t, export.add(snapshotAt(0, 3, 30)))
	require.NoError(t, export.finish(false))
	assert.Equal(t, []string{"start", "snapshot"}, sink.kinds)

	empty := &recordingSink{}
	require.NoError(t, (&remoteExport{sink: empty}).finish(true))
	assert.Empty(t, empty.kinds)
}

func TestStreamJobWritesGrowLayout(t *testing.T) {
	_, srv := newTestService(t)
	gc, err := client.NewGrowthClient(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := utils.DefaultConfig()
	cfg.Tree.Attractors = 30
	cfg.Tree.RMax = 4
	cfg.Tree.MaxStemSteps = 100
	cfg.Root.Position = []float64{0, 0, -3}
	cfg.Envelope.Preset = "box"
	cfg.Run.MaxTicks = 200
	cfg.Run.SnapshotEvery = 5

	job, err := gc.SubmitJob(ctx, cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "remote.jsonl")
	final, err := streamJob(ctx, gc, job, path)
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Equal(t, jobs.StatusCompleted, final.Status)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var kinds []string
	var envelopePlanes int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var rec struct {
			Kind string                `json:"kind"`
			Meta *colonization.RunMeta `json:"meta"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		kinds = append(kinds, rec.Kind)
		if rec.Meta != nil {
			envelopePlanes = len(rec.Meta.Envelope)
		}
	}
	require.NoError(t, scanner.Err())

	require.GreaterOrEqual(t, len(kinds), 2)
	assert.Equal(t, "start", kinds[0])
	assert.Equal(t, "end", kinds[len(kinds)-1])
	for _, k := range kinds[1 : len(kinds)-1] {
		assert.Equal(t, "snapshot", k)
	}
	assert.Equal(t, 6, envelopePlanes)
}
