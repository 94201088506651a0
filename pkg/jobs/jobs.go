package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"

	"github.com/oxygene76/fractaltree/internal/types"
	"github.com/oxygene76/fractaltree/pkg/colonization"
	"github.com/oxygene76/fractaltree/pkg/utils"
)

// Codespace is the error codespace for the job service
const Codespace = "jobs"

var (
	ErrJobNotFound = errorsmod.Register(Codespace, 2, "job not found")
	ErrQueueFull   = errorsmod.Register(Codespace, 3, "job queue full")
	ErrJobFinished = errorsmod.Register(Codespace, 4, "job already finished")
)

// JobStatus represents the status of a growth job
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the status is terminal
func (s JobStatus) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// MaxStemSteps caps stem growth of submitted jobs, including configs that
// ask for an unlimited stem
const MaxStemSteps = 100_000

// subscriberBuffer is the per-subscriber snapshot backlog; older snapshots
// are dropped when a subscriber falls behind
const subscriberBuffer = 8

// GrowthJob is the externally visible state of a job
type GrowthJob struct {
	ID          string              `json:"id"`
	Status      JobStatus           `json:"status"`
	Progress    float64             `json:"progress"`
	Tick        int                 `json:"tick"`
	Nodes       int                 `json:"nodes"`
	Remaining   int                 `json:"remaining"`
	Config      utils.Config        `json:"config"`
	Result      *types.GrowthResult `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
	SubmittedAt time.Time           `json:"submitted_at"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

type job struct {
	info   GrowthJob
	ctx    context.Context
	cancel context.CancelFunc
	last   *colonization.Snapshot
	subs   map[int]chan *colonization.Snapshot
	nextID int
}

// JobManager runs growth jobs on a fixed pool of workers. Every job owns its
// own engine, so engines never share state.
type JobManager struct {
	mu         sync.Mutex
	jobs       map[string]*job
	jobCounter int64
	maxJobs    int

	queue        chan *job
	workers      int
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// NewJobManager creates a job manager and starts its workers
func NewJobManager(maxJobs, workers int) *JobManager {
	jm := newJobManager(maxJobs, workers)
	jm.startWorkers()
	return jm
}

func newJobManager(maxJobs, workers int) *JobManager {
	if maxJobs <= 0 {
		maxJobs = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &JobManager{
		jobs:         make(map[string]*job),
		maxJobs:      maxJobs,
		queue:        make(chan *job, maxJobs),
		workers:      workers,
		shutdownChan: make(chan struct{}),
	}
}

func (jm *JobManager) startWorkers() {
	for i := 0; i < jm.workers; i++ {
		jm.wg.Add(1)
		go jm.worker()
	}
}

func (jm *JobManager) worker() {
	defer jm.wg.Done()

	for {
		select {
		case <-jm.shutdownChan:
			return
		case j := <-jm.queue:
			jm.processJob(j)
		}
	}
}

// SubmitJob validates cfg and queues a growth job
func (jm *JobManager) SubmitJob(cfg utils.Config) (*GrowthJob, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errorsmod.Wrap(colonization.ErrInvalidOptions, err.Error())
	}
	if _, _, err := cfg.BuildOptions(); err != nil {
		return nil, errorsmod.Wrap(colonization.ErrInvalidOptions, err.Error())
	}
	if cfg.Tree.MaxStemSteps == 0 || cfg.Tree.MaxStemSteps > MaxStemSteps {
		cfg.Tree.MaxStemSteps = MaxStemSteps
	}

	jm.mu.Lock()
	defer jm.mu.Unlock()

	if jm.activeJobsLocked() >= jm.maxJobs {
		return nil, errorsmod.Wrapf(ErrQueueFull, "maximum concurrent jobs reached (%d)", jm.maxJobs)
	}

	jm.jobCounter++
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		info: GrowthJob{
			ID:          fmt.Sprintf("tree-%d", jm.jobCounter),
			Status:      StatusQueued,
			Config:      cfg,
			SubmittedAt: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[int]chan *colonization.Snapshot),
	}

	select {
	case jm.queue <- j:
	default:
		// cancelled jobs may still occupy queue slots until a worker drains them
		cancel()
		return nil, errorsmod.Wrap(ErrQueueFull, "queue is draining cancelled jobs")
	}
	jm.jobs[j.info.ID] = j

	info := j.info
	return &info, nil
}

func (jm *JobManager) activeJobsLocked() int {
	n := 0
	for _, j := range jm.jobs {
		if !j.info.Status.Finished() {
			n++
		}
	}
	return n
}

// GetJob returns a copy of the job state
func (jm *JobManager) GetJob(id string) (*GrowthJob, error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	j, ok := jm.jobs[id]
	if !ok {
		return nil, errorsmod.Wrapf(ErrJobNotFound, "job %s", id)
	}
	info := j.info
	return &info, nil
}

// ListJobs returns all jobs ordered by submission time
func (jm *JobManager) ListJobs() []GrowthJob {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	out := make([]GrowthJob, 0, len(jm.jobs))
	for _, j := range jm.jobs {
		out = append(out, j.info)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].SubmittedAt.Before(out[b].SubmittedAt)
	})
	return out
}

// LastSnapshot returns the most recent snapshot of a job, or nil before the first one
func (jm *JobManager) LastSnapshot(id string) (*colonization.Snapshot, error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	j, ok := jm.jobs[id]
	if !ok {
		return nil, errorsmod.Wrapf(ErrJobNotFound, "job %s", id)
	}
	return j.last, nil
}

// CancelJob stops a queued or running job
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	j, ok := jm.jobs[id]
	if !ok {
		return errorsmod.Wrapf(ErrJobNotFound, "job %s", id)
	}
	if j.info.Status.Finished() {
		return errorsmod.Wrapf(ErrJobFinished, "job %s is %s", id, j.info.Status)
	}

	j.cancel()
	if j.info.Status == StatusQueued {
		jm.finishLocked(j, StatusCancelled, "cancelled before start")
	}
	return nil
}

// Subscribe streams snapshots of a job. The channel is closed when the job
// finishes or unsubscribe is called. A finished job yields its last snapshot.
func (jm *JobManager) Subscribe(id string) (<-chan *colonization.Snapshot, func(), error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	j, ok := jm.jobs[id]
	if !ok {
		return nil, nil, errorsmod.Wrapf(ErrJobNotFound, "job %s", id)
	}

	ch := make(chan *colonization.Snapshot, subscriberBuffer)
	if j.last != nil {
		ch <- j.last
	}
	if j.info.Status.Finished() {
		close(ch)
		return ch, func() {}, nil
	}

	subID := j.nextID
	j.nextID++
	j.subs[subID] = ch

	unsubscribe := func() {
		jm.mu.Lock()
		defer jm.mu.Unlock()
		if c, ok := j.subs[subID]; ok {
			delete(j.subs, subID)
			close(c)
		}
	}
	return ch, unsubscribe, nil
}

// Shutdown cancels all jobs and stops the workers
func (jm *JobManager) Shutdown() {
	jm.shutdownOnce.Do(func() {
		jm.mu.Lock()
		for _, j := range jm.jobs {
			j.cancel()
			if j.info.Status == StatusQueued {
				jm.finishLocked(j, StatusCancelled, "service shutdown")
			}
		}
		jm.mu.Unlock()

		close(jm.shutdownChan)
		jm.wg.Wait()
	})
}

func (jm *JobManager) processJob(j *job) {
	defer func() {
		if r := recover(); r != nil {
			jm.mu.Lock()
			jm.finishLocked(j, StatusFailed, fmt.Sprintf("job panicked: %v", r))
			jm.mu.Unlock()
		}
	}()

	jm.mu.Lock()
	if j.info.Status != StatusQueued {
		jm.mu.Unlock()
		return
	}
	now := time.Now()
	j.info.Status = StatusRunning
	j.info.StartedAt = &now
	cfg := j.info.Config
	jm.mu.Unlock()

	log.Printf("Starting growth job %s (%d attractors, preset %s)", j.info.ID, cfg.Tree.Attractors, cfg.Envelope.Preset)

	root, opts, err := cfg.BuildOptions()
	if err != nil {
		jm.fail(j, err)
		return
	}
	tree, err := colonization.NewWithContext(j.ctx, root, opts)
	if errors.Is(err, context.Canceled) {
		jm.mu.Lock()
		jm.finishLocked(j, StatusCancelled, "cancelled")
		jm.mu.Unlock()
		return
	}
	if err != nil {
		jm.fail(j, err)
		return
	}

	sampling := types.SummarizeAttractors(tree.Attractors(), cfg.Tree.Attractors, tree.SampleIterations())

	runOpts := cfg.RunOptions()
	runOpts.OnTick = func(t *colonization.FractalTree, _ int) {
		jm.mu.Lock()
		j.info.Tick = t.Tick()
		j.info.Nodes = len(t.Nodes())
		j.info.Remaining = len(t.Attractors())
		j.info.Progress = t.Progress()
		jm.mu.Unlock()
	}

	stats, err := colonization.Run(j.ctx, tree, runOpts, &broadcastSink{jm: jm, job: j})

	jm.mu.Lock()
	defer jm.mu.Unlock()

	j.info.Result = &types.GrowthResult{
		ID:       j.info.ID,
		Stats:    stats,
		Sampling: sampling,
		Metadata: types.GrowthMetadata{
			Preset:     cfg.Envelope.Preset,
			Attractors: cfg.Tree.Attractors,
			RMin:       cfg.Tree.RMin,
			RMax:       cfg.Tree.RMax,
			Seed:       cfg.Tree.Seed,
			Version:    types.Version,
		},
		Timestamp: time.Now(),
	}

	switch {
	case errors.Is(err, context.Canceled):
		j.info.Result.Status = string(StatusCancelled)
		jm.finishLocked(j, StatusCancelled, "cancelled")
	case err != nil:
		j.info.Result.Status = string(StatusFailed)
		j.info.Result.Error = err.Error()
		jm.finishLocked(j, StatusFailed, err.Error())
	default:
		j.info.Result.Status = string(StatusCompleted)
		j.info.Progress = tree.Progress()
		jm.finishLocked(j, StatusCompleted, "")
		log.Printf("Growth job %s completed: %d ticks, %d nodes in %v", j.info.ID, stats.Ticks, stats.Nodes, stats.Duration)
	}
}

func (jm *JobManager) fail(j *job, err error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	log.Printf("Growth job %s failed: %v", j.info.ID, err)
	jm.finishLocked(j, StatusFailed, err.Error())
}

// finishLocked moves a job to a terminal status and closes its subscribers
func (jm *JobManager) finishLocked(j *job, status JobStatus, msg string) {
	if j.info.Status.Finished() {
		return
	}
	now := time.Now()
	j.info.Status = status
	j.info.CompletedAt = &now
	if status != StatusCompleted {
		j.info.Error = msg
	}
	for id, ch := range j.subs {
		delete(j.subs, id)
		close(ch)
	}
	j.cancel()
}

func (jm *JobManager) publish(j *job, s *colonization.Snapshot) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	j.last = s
	for _, ch := range j.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// broadcastSink feeds a job's snapshots to its subscribers
type broadcastSink struct {
	jm  *JobManager
	job *job
}

func (b *broadcastSink) OnStart(colonization.RunMeta) error { return nil }

func (b *broadcastSink) OnSnapshot(s *colonization.Snapshot) error {
	b.jm.publish(b.job, s)
	return nil
}

func (b *broadcastSink) OnEnd(final *colonization.Snapshot) error {
	b.jm.publish(b.job, final)
	return nil
}

func (b *broadcastSink) Close() error { return nil }
