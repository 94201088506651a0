package colonization

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygene76/fractaltree/pkg/geometry"
)

func stemTree(t *testing.T) *FractalTree {
	t.Helper()
	tree, err := New(upRoot(0, 0, 0), fixedOptions(0.04, 0.16, geometry.NewVector(0, 0, 3)))
	require.NoError(t, err)
	return tree
}

func decodeRecords(t *testing.T, data []byte) []jsonlRecord {
	t.Helper()
	var records []jsonlRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	for scanner.Scan() {
		var rec jsonlRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestNewSnapshot(t *testing.T) {
	tree := stemTree(t)
	s := NewSnapshot(tree, nil)

	assert.Equal(t, 0, s.Tick)
	assert.False(t, s.Completed)
	require.Len(t, s.Nodes, 4)
	require.Len(t, s.Attractors, 1)
	assert.Equal(t, NodeSnapshot{Index: 0, Parent: NoParent, Pos: [3]float64{0, 0, 0}}, s.Nodes[0])
	assert.Equal(t, NodeSnapshot{Index: 3, Parent: 2, Pos: [3]float64{0, 0, 3}}, s.Nodes[3])
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}}, s.Segments())

	view := geometry.ForTranslation(1, 0, 0)
	moved := NewSnapshot(tree, &view)
	assert.Equal(t, [3]float64{1, 0, 3}, moved.Nodes[3].Pos)
	assert.Equal(t, [3]float64{1, 0, 3}, moved.Attractors[0].Pos)

	// the tree itself is untouched
	assert.Equal(t, [3]float64{0, 0, 3}, tree.Nodes()[3].Pos.Array())
}

func TestRunToCompletion(t *testing.T) {
	tree := stemTree(t)
	var buf bytes.Buffer
	w := NewJSONLStreamWriter(&buf)

	var ticks []int
	stats, err := Run(context.Background(), tree, RunOptions{
		SnapshotEvery: 1,
		OnTick:        func(t *FractalTree, grown int) { ticks = append(ticks, t.Tick()) },
	}, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.True(t, stats.Completed)
	assert.Equal(t, 1, stats.Ticks)
	assert.Equal(t, 4, stats.Nodes)
	assert.Equal(t, 1, stats.Sampled)
	assert.Zero(t, stats.Remaining)
	assert.Equal(t, 2, stats.Snapshots)
	assert.Equal(t, []int{1}, ticks)

	records := decodeRecords(t, buf.Bytes())
	require.Len(t, records, 3)
	assert.Equal(t, "start", records[0].Kind)
	require.NotNil(t, records[0].Meta)
	assert.Equal(t, 1, records[0].Meta.Attractors)
	assert.Equal(t, 4, records[0].Meta.Nodes)
	assert.Equal(t, "snapshot", records[1].Kind)
	assert.Equal(t, "end", records[2].Kind)
	require.NotNil(t, records[2].Snapshot)
	assert.True(t, records[2].Snapshot.Completed)
	assert.Empty(t, records[2].Snapshot.Attractors)
}

func TestRunMaxTicks(t *testing.T) {
	tree := symmetricTree(t)
	var buf bytes.Buffer

	stats, err := Run(context.Background(), tree, RunOptions{MaxTicks: 6, SnapshotEvery: 2}, NewJSONLStreamWriter(&buf))
	require.NoError(t, err)

	assert.False(t, stats.Completed)
	assert.Equal(t, 6, stats.Ticks)
	assert.Equal(t, 7, stats.Nodes)
	assert.Equal(t, 2, stats.Remaining)
	// initial, ticks 2, 4 and 6, end
	assert.Equal(t, 5, stats.Snapshots)

	records := decodeRecords(t, buf.Bytes())
	require.Len(t, records, 6)
	for i, tick := range []int{0, 2, 4, 6} {
		assert.Equal(t, tick, records[i+1].Snapshot.Tick)
	}
	assert.Equal(t, 6, records[5].Snapshot.Tick)
}

func TestRunWithoutSink(t *testing.T) {
	tree := symmetricTree(t)
	stats, err := Run(context.Background(), tree, RunOptions{MaxTicks: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Ticks)
	assert.Zero(t, stats.Snapshots)
}

func TestRunCancelled(t *testing.T) {
	tree := symmetricTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := Run(ctx, tree, RunOptions{}, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Ticks)
	assert.Len(t, tree.Nodes(), 1)
}

func TestRunRotatesView(t *testing.T) {
	tree := symmetricTree(t)
	view := geometry.NewMatrix4()
	rotation := geometry.ForRotationZ(geometry.HalfPi)
	var buf bytes.Buffer

	_, err := Run(context.Background(), tree, RunOptions{
		MaxTicks:      1,
		SnapshotEvery: 1,
		View:          &view,
		ViewRotation:  &rotation,
	}, NewJSONLStreamWriter(&buf))
	require.NoError(t, err)

	records := decodeRecords(t, buf.Bytes())
	first := records[1].Snapshot.Attractors[0].Pos
	last := records[len(records)-1].Snapshot.Attractors[0].Pos
	assert.InDelta(t, 1, first[0], tolerance)
	assert.InDelta(t, 0, last[0], tolerance)
	assert.InDelta(t, 1, last[1], tolerance)
}

func TestJSONLSnapshotWriterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.jsonl")
	w, err := NewJSONLSnapshotWriter(path)
	require.NoError(t, err)

	_, err = Run(context.Background(), stemTree(t), RunOptions{}, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records := decodeRecords(t, data)
	require.Len(t, records, 3)
	assert.Equal(t, "end", records[2].Kind)

	_, err = NewJSONLSnapshotWriter(filepath.Join(t.TempDir(), "missing", "tree.jsonl"))
	assert.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestJSONLSnapshotWriterCloseReportsFlushError(t *testing.T) {
	w := NewJSONLStreamWriter(failingWriter{})
	require.NoError(t, w.OnSnapshot(NewSnapshot(stemTree(t), nil)))

	err := w.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
