package bio

import (
	"context"
	"os"
	"sync"
)

// Pool runs CLOSE_FILE, AOF_FSYNC and LAZY_FREE jobs on three fixed
// worker goroutines, one FIFO queue per type. Jobs of the same type run
// in submission order; jobs of different types have no ordering
// guarantee relative to each other.
type Pool struct {
	queues [numJobTypes]*jobQueue
	wg     sync.WaitGroup
}

// New starts the three workers and returns a ready Pool.
func New() *Pool {
	p := &Pool{}

	for t := CloseFile; t < numJobTypes; t++ {
		q := newJobQueue()
		p.queues[t] = q

		p.wg.Add(1)

		go func() {
			defer p.wg.Done()

			q.run()
		}()
	}

	return p
}

func (p *Pool) queueFor(t JobType) (*jobQueue, error) {
	if !t.valid() {
		return nil, ErrUnknownJobType
	}

	return p.queues[t], nil
}

// Submit enqueues an arbitrary job of the given type. run must be
// non-nil. Most callers prefer SubmitCloseFile/SubmitAOFFsync/
// SubmitLazyFree instead.
func (p *Pool) Submit(t JobType, run func()) error {
	q, err := p.queueFor(t)
	if err != nil {
		return err
	}

	return q.submit(job{run: run})
}

// SubmitCloseFile enqueues f.Close on the CLOSE_FILE queue.
func (p *Pool) SubmitCloseFile(f *os.File) error {
	return p.Submit(CloseFile, func() {
		_ = f.Close()
	})
}

// SubmitAOFFsync enqueues f.Sync on the AOF_FSYNC queue, tolerating the
// fd-reuse races (already-closed or reassigned fd) the spec calls out:
// any other error is swallowed too, since the job signature has no way
// to report it back to the submitter.
func (p *Pool) SubmitAOFFsync(f *os.File) error {
	return p.Submit(AOFFsync, func() {
		_ = f.Sync()
	})
}

// SubmitLazyFree enqueues an arbitrary deallocator on the LAZY_FREE
// queue. free is run exactly once, in submission order relative to
// other LAZY_FREE jobs.
func (p *Pool) SubmitLazyFree(free func()) error {
	return p.Submit(LazyFree, free)
}

// PendingOf returns the number of jobs of type t queued or running.
func (p *Pool) PendingOf(t JobType) int {
	q, err := p.queueFor(t)
	if err != nil {
		return 0
	}

	return q.pendingCount()
}

// WaitOneStep blocks until type t's pending counter reaches zero, or
// ctx is done.
func (p *Pool) WaitOneStep(ctx context.Context, t JobType) error {
	q, err := p.queueFor(t)
	if err != nil {
		return err
	}

	return q.waitOneStep(ctx)
}

// KillAll stops every worker and waits for them to run every job still
// queued and exit, or for ctx to be done.
//
// Go worker goroutines carry no identity to compare against the caller,
// unlike the source's pthread self-join guard: calling KillAll from
// inside a job handler running on one of these queues will block
// waiting on that queue's own worker to finish, which never happens
// since that worker is the caller. Callers must not invoke KillAll from
// within a submitted job.
func (p *Pool) KillAll(ctx context.Context) error {
	for _, q := range p.queues {
		q.stop()
	}

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
