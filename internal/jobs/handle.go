package jobs

import (
	"context"
	"errors"
	"io"
	"sync"

	"studio/internal/domain"
)

// CloserFunc adapts a plain function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

// Handle owns the polling goroutine of one job together with any resources
// registered on it. They are torn down exactly once: by Cancel, or when the
// poll loop reaches a final state.
type Handle struct {
	job        domain.Job
	generation uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	canceled bool
	released bool
	closers  []io.Closer
	snap     domain.Snapshot
	release  func(*Handle)
	closeErr error
}

func newHandle(parent context.Context, job domain.Job, generation uint64, release func(*Handle)) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{
		job:        job,
		generation: generation,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		snap:       domain.NewSnapshot(job),
		release:    release,
	}
}

func (h *Handle) Job() domain.Job { return h.job }

// Context is canceled when the handle is.
func (h *Handle) Context() context.Context { return h.ctx }

// Done is closed once the polling goroutine has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Snapshot returns the latest reconciled state held by the handle.
func (h *Handle) Snapshot() domain.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

// Canceled reports whether Cancel ran.
func (h *Handle) Canceled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canceled
}

// OnCancel registers a resource closed when the handle is torn down. A handle
// that is already torn down closes it right away.
func (h *Handle) OnCancel(c io.Closer) {
	if c == nil {
		return
	}
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		_ = c.Close()
		return
	}
	h.closers = append(h.closers, c)
	h.mu.Unlock()
}

// Cancel stops polling, closes registered resources in reverse order and
// unregisters the handle. Calling it again, or after the job finished, is a
// no-op.
func (h *Handle) Cancel() error {
	h.teardown(true)
	return h.closeErr
}

// teardown cancels the context and closes the registered resources. Only a
// cancel marks the handle canceled and calls release.
func (h *Handle) teardown(cancel bool) {
	h.once.Do(func() {
		h.cancel()

		h.mu.Lock()
		h.released = true
		h.canceled = cancel
		closers := h.closers
		h.closers = nil
		release := h.release
		h.release = nil
		h.mu.Unlock()

		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				errs = append(errs, err)
			}
		}
		h.closeErr = errors.Join(errs...)

		if cancel && release != nil {
			release(h)
		}
	})
}
