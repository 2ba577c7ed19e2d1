// Package jobs tracks externally owned asynchronous jobs: it runs one poll
// loop per job, reconciles each status into a client-facing snapshot and
// tears everything down when the job finishes or its owner cancels it.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/poller"
)

const subscriberBuffer = 16

// Submitter is implemented by every provider adapter able to start a job.
type Submitter[P any] interface {
	Submit(ctx context.Context, payload P) (domain.Job, error)
}

// Options configures a Tracker.
type Options struct {
	Store                Store
	Clock                poller.Clock
	Logger               *infra.Logger
	MaxConsecutiveErrors int
}

// Watch describes one job to poll.
type Watch struct {
	Job   domain.Job
	Check poller.CheckFunc
	// Label prefixes timeout and abort messages, e.g. "video generation".
	Label string
	// OnFinish runs after the final snapshot was stored. It is skipped when
	// the handle was canceled first.
	OnFinish func(snap domain.Snapshot, err error)
}

// Tracker owns the active handles, keyed by job id.
type Tracker struct {
	store   Store
	clock   poller.Clock
	logger  *infra.Logger
	maxErrs int

	base       context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	generation uint64
	handles    map[string]*Handle
	subs       map[string]map[chan domain.Snapshot]struct{}
}

func NewTracker(opts Options) *Tracker {
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	clock := opts.Clock
	if clock == nil {
		clock = poller.SystemClock{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &Tracker{
		store:      store,
		clock:      clock,
		logger:     infra.NopLogger(opts.Logger),
		maxErrs:    opts.MaxConsecutiveErrors,
		base:       base,
		baseCancel: cancel,
		handles:    make(map[string]*Handle),
		subs:       make(map[string]map[chan domain.Snapshot]struct{}),
	}
}

// Start registers the job and polls it in its own goroutine. Job ids that are
// active or already in the Store are rejected with domain.ErrDuplicateJob.
func (t *Tracker) Start(ctx context.Context, w Watch) (*Handle, error) {
	if w.Job.ID == "" {
		return nil, errors.New("job id is required")
	}
	if w.Check == nil {
		return nil, errors.New("status check is required")
	}

	if _, err := t.store.Get(ctx, w.Job.ID); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateJob, w.Job.ID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("look up job %s: %w", w.Job.ID, err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.New("tracker closed")
	}
	if _, ok := t.handles[w.Job.ID]; ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateJob, w.Job.ID)
	}
	t.generation++
	h := newHandle(t.base, w.Job, t.generation, t.release)
	t.handles[w.Job.ID] = h
	t.wg.Add(1)
	t.mu.Unlock()

	if err := t.store.Save(ctx, h.Snapshot()); err != nil {
		t.logger.Warn().Err(err).Str("job_id", w.Job.ID).Msg("jobs: save initial snapshot failed")
	}
	t.logger.Info().
		Str("job_id", w.Job.ID).
		Str("kind", string(w.Job.Kind)).
		Str("provider", w.Job.Provider).
		Dur("interval", w.Job.PollInterval).
		Msg("jobs: polling started")

	go t.run(h, w)
	return h, nil
}

func (t *Tracker) run(h *Handle, w Watch) {
	defer t.wg.Done()
	defer close(h.done)
	// A job that ends on its own releases its resources before Done closes.
	defer h.teardown(false)

	p := poller.ForJob(h.job, t.maxErrs, t.clock, t.logger)
	res, err := p.Run(h.ctx, w.Check, func(attempt int, st domain.JobStatus) {
		t.apply(h, func(s domain.Snapshot) domain.Snapshot {
			s = Apply(s, st)
			s.Attempts = attempt
			s.UpdatedAt = t.clock.Now()
			return s
		})
	})
	if errors.Is(err, domain.ErrCanceled) && h.Canceled() {
		return
	}

	label := w.Label
	if label == "" {
		label = string(h.job.Kind)
	}
	snap, applied := t.apply(h, func(s domain.Snapshot) domain.Snapshot {
		return finalize(s, res, err, label, t.clock.Now())
	})
	t.finish(h)
	if !applied {
		return
	}

	ev := t.logger.Info()
	if err != nil {
		ev = t.logger.Warn().Err(err)
	}
	ev.Str("job_id", h.job.ID).Int("attempts", res.Attempts).Str("state", string(snap.State)).Msg("jobs: polling finished")

	if w.OnFinish != nil {
		w.OnFinish(snap, err)
	}
}

func finalize(s domain.Snapshot, res poller.Result, err error, label string, now time.Time) domain.Snapshot {
	if res.Attempts > s.Attempts {
		s.Attempts = res.Attempts
	}
	s.UpdatedAt = now
	s.Generating = false
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrJobFailed):
		s.State = domain.JobStateFailed
		if s.Error == "" {
			s.Error = genericFailure
		}
	case errors.Is(err, domain.ErrTimeout):
		s.State = domain.JobStateFailed
		s.Error = label + " " + err.Error()
	default:
		s.State = domain.JobStateFailed
		s.Error = label + " failed: " + err.Error()
	}
	return s
}

// apply mutates the handle's snapshot unless the handle was canceled or
// replaced, then stores and publishes the result. Late responses from a torn
// down poll loop are dropped here.
func (t *Tracker) apply(h *Handle, fn func(domain.Snapshot) domain.Snapshot) (domain.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.canceled || !t.isCurrent(h) {
		return h.snap, false
	}
	h.snap = fn(h.snap)
	t.commit(h.snap)
	return h.snap, true
}

func (t *Tracker) isCurrent(h *Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.handles[h.job.ID]
	return ok && cur.generation == h.generation
}

func (t *Tracker) commit(snap domain.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.store.Save(ctx, snap); err != nil {
		t.logger.Warn().Err(err).Str("job_id", snap.JobID).Msg("jobs: save snapshot failed")
	}
	t.publish(snap)
}

func (t *Tracker) publish(snap domain.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ch := range t.subs[snap.JobID] {
		select {
		case ch <- snap:
		default:
			// Slow subscriber: drop its oldest snapshot and keep the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// finish unregisters a handle whose poll loop ended on its own.
func (t *Tracker) finish(h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.handles[h.job.ID]; ok && cur.generation == h.generation {
		delete(t.handles, h.job.ID)
		t.closeSubsLocked(h.job.ID)
	}
}

// release is called once by Handle.Cancel.
func (t *Tracker) release(h *Handle) {
	t.mu.Lock()
	cur, ok := t.handles[h.job.ID]
	current := ok && cur.generation == h.generation
	if current {
		delete(t.handles, h.job.ID)
	}
	t.mu.Unlock()
	if !current {
		return
	}

	h.mu.Lock()
	if h.snap.Generating {
		h.snap.Generating = false
		h.snap.Error = domain.ErrCanceled.Error()
	}
	h.snap.UpdatedAt = t.clock.Now()
	snap := h.snap
	h.mu.Unlock()

	t.commit(snap)
	t.mu.Lock()
	t.closeSubsLocked(h.job.ID)
	t.mu.Unlock()
	t.logger.Info().Str("job_id", h.job.ID).Msg("jobs: polling canceled")
}

func (t *Tracker) closeSubsLocked(jobID string) {
	for ch := range t.subs[jobID] {
		close(ch)
	}
	delete(t.subs, jobID)
}

// Get returns the freshest snapshot for jobID, from the live handle when the
// job is still active.
func (t *Tracker) Get(ctx context.Context, jobID string) (domain.Snapshot, error) {
	t.mu.Lock()
	h, ok := t.handles[jobID]
	t.mu.Unlock()
	if ok {
		return h.Snapshot(), nil
	}
	return t.store.Get(ctx, jobID)
}

// Handle returns the active handle for jobID.
func (t *Tracker) Handle(jobID string) (*Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[jobID]
	return h, ok
}

// Cancel runs the cleanup hook for jobID. Canceling a finished job is a no-op.
func (t *Tracker) Cancel(ctx context.Context, jobID string) error {
	t.mu.Lock()
	h, ok := t.handles[jobID]
	t.mu.Unlock()
	if ok {
		return h.Cancel()
	}
	if _, err := t.store.Get(ctx, jobID); err != nil {
		return err
	}
	return nil
}

// Subscribe streams every snapshot committed for jobID from now on. The
// channel is closed when the job finishes or is canceled; it is returned
// already closed for jobs that are not active.
func (t *Tracker) Subscribe(jobID string) (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, subscriberBuffer)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handles[jobID]; !ok {
		close(ch)
		return ch, func() {}
	}
	if t.subs[jobID] == nil {
		t.subs[jobID] = make(map[chan domain.Snapshot]struct{})
	}
	t.subs[jobID][ch] = struct{}{}
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if set, ok := t.subs[jobID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
		}
	}
}

// Active returns the number of jobs still being polled.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// Close cancels every active handle and waits for their goroutines.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	handles := make([]*Handle, 0, len(t.handles))
	for _, h := range t.handles {
		handles = append(handles, h)
	}
	t.mu.Unlock()

	for _, h := range handles {
		_ = h.Cancel()
	}
	t.baseCancel()
	t.wg.Wait()
}
