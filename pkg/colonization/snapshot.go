package colonization

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/oxygene76/fractaltree/pkg/geometry"
)

// NodeSnapshot is a node as seen by a renderer
type NodeSnapshot struct {
	Index  int        `json:"index"`
	Parent int        `json:"parent"`
	Pos    [3]float64 `json:"pos"`
}

// PointSnapshot is a remaining attractor as seen by a renderer
type PointSnapshot struct {
	Pos    [3]float64 `json:"pos"`
	Weight float64    `json:"weight"`
}

// Snapshot is the engine state after a tick
type Snapshot struct {
	Tick       int             `json:"tick"`
	Completed  bool            `json:"completed"`
	Nodes      []NodeSnapshot  `json:"nodes"`
	Attractors []PointSnapshot `json:"attractors"`
}

// NewSnapshot copies the tree's nodes and attractors. When view is non-nil
// every position is transformed by it.
func NewSnapshot(t *FractalTree, view *geometry.Matrix4) *Snapshot {
	nodes := t.Nodes()
	attractors := t.Attractors()
	s := &Snapshot{
		Tick:       t.Tick(),
		Completed:  t.IsCompleted(),
		Nodes:      make([]NodeSnapshot, len(nodes)),
		Attractors: make([]PointSnapshot, len(attractors)),
	}

	var tmp geometry.Vector
	project := func(v *geometry.Vector) [3]float64 {
		if view == nil {
			return v.Array()
		}
		return v.ApplyTransform(*view, &tmp).Array()
	}

	for k := range nodes {
		s.Nodes[k] = NodeSnapshot{Index: k, Parent: nodes[k].Parent, Pos: project(&nodes[k].Pos)}
	}
	for k := range attractors {
		s.Attractors[k] = PointSnapshot{Pos: project(&attractors[k].Pos), Weight: attractors[k].Weight}
	}
	return s
}

// Segments returns (parent, child) index pairs for every non-root node
func (s *Snapshot) Segments() [][2]int {
	segs := make([][2]int, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.Parent != NoParent {
			segs = append(segs, [2]int{n.Parent, n.Index})
		}
	}
	return segs
}

// RunMeta describes a run before its first tick
type RunMeta struct {
	Attractors int              `json:"attractors"`
	Nodes      int              `json:"nodes"`
	RMin       float64          `json:"rmin"`
	RMax       float64          `json:"rmax"`
	Envelope   []geometry.Plane `json:"envelope"`
}

// SnapshotSink receives snapshots while a tree grows
type SnapshotSink interface {
	OnStart(meta RunMeta) error
	OnSnapshot(s *Snapshot) error
	OnEnd(final *Snapshot) error
	Close() error
}

// JSONLSnapshotWriter writes one JSON record per line
type JSONLSnapshotWriter struct {
	c  io.Closer
	bw *bufio.Writer
}

type jsonlRecord struct {
	Kind     string    `json:"kind"`
	Meta     *RunMeta  `json:"meta,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

// NewJSONLSnapshotWriter creates the file at path
func NewJSONLSnapshotWriter(path string) (*JSONLSnapshotWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot file: %w", err)
	}
	return &JSONLSnapshotWriter{c: f, bw: bufio.NewWriter(f)}, nil
}

// NewJSONLStreamWriter writes to w; Close flushes but does not close w
func NewJSONLStreamWriter(w io.Writer) *JSONLSnapshotWriter {
	return &JSONLSnapshotWriter{bw: bufio.NewWriter(w)}
}

func (w *JSONLSnapshotWriter) write(rec jsonlRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.bw.Write(b); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

func (w *JSONLSnapshotWriter) OnStart(meta RunMeta) error {
	return w.write(jsonlRecord{Kind: "start", Meta: &meta})
}

func (w *JSONLSnapshotWriter) OnSnapshot(s *Snapshot) error {
	return w.write(jsonlRecord{Kind: "snapshot", Snapshot: s})
}

func (w *JSONLSnapshotWriter) OnEnd(final *Snapshot) error {
	if err := w.write(jsonlRecord{Kind: "end", Snapshot: final}); err != nil {
		return err
	}
	return w.bw.Flush()
}

// Close flushes buffered records and closes the file, reporting the first error
func (w *JSONLSnapshotWriter) Close() error {
	var err error
	if w.bw != nil {
		err = w.bw.Flush()
	}
	if w.c != nil {
		if cerr := w.c.Close(); cerr != nil {
			return cerr
		}
	}
	return err
}
