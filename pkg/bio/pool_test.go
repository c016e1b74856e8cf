package bio_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvcore/engine/pkg/bio"
)

// TestLazyFreeJobsRunInFIFOOrder covers S6: three LAZY_FREE jobs
// submitted in order A, B, C append their label to a shared log in
// that order.
func TestLazyFreeJobsRunInFIFOOrder(t *testing.T) {
	p := bio.New()
	defer func() { _ = p.KillAll(context.Background()) }()

	var mu sync.Mutex
	var log []string

	append1 := func(label string) func() {
		return func() {
			mu.Lock()
			defer mu.Unlock()
			log = append(log, label)
		}
	}

	require.NoError(t, p.SubmitLazyFree(append1("A")))
	require.NoError(t, p.SubmitLazyFree(append1("B")))
	require.NoError(t, p.SubmitLazyFree(append1("C")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, p.WaitOneStep(ctx, bio.LazyFree))
	assert.Equal(t, 0, p.PendingOf(bio.LazyFree))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"A", "B", "C"}, log)
}

func TestPendingOfTracksQueueDepth(t *testing.T) {
	p := bio.New()
	defer func() { _ = p.KillAll(context.Background()) }()

	release := make(chan struct{})

	require.NoError(t, p.SubmitLazyFree(func() { <-release }))
	require.NoError(t, p.SubmitLazyFree(func() {}))

	require.Eventually(t, func() bool {
		return p.PendingOf(bio.LazyFree) == 2
	}, time.Second, time.Millisecond)

	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.WaitOneStep(ctx, bio.LazyFree))
	assert.Equal(t, 0, p.PendingOf(bio.LazyFree))
}

func TestWaitOneStepReturnsImmediatelyWhenIdle(t *testing.T) {
	p := bio.New()
	defer func() { _ = p.KillAll(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, p.WaitOneStep(ctx, bio.CloseFile))
}

func TestWaitOneStepRespectsContextCancellation(t *testing.T) {
	p := bio.New()
	defer func() { _ = p.KillAll(context.Background()) }()

	release := make(chan struct{})
	defer close(release)

	require.NoError(t, p.SubmitLazyFree(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.WaitOneStep(ctx, bio.LazyFree)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitAfterKillAllReturnsErrClosed(t *testing.T) {
	p := bio.New()

	require.NoError(t, p.KillAll(context.Background()))

	err := p.SubmitLazyFree(func() {})
	assert.ErrorIs(t, err, bio.ErrClosed)
}

func TestSubmitUnknownJobTypeFails(t *testing.T) {
	p := bio.New()
	defer func() { _ = p.KillAll(context.Background()) }()

	err := p.Submit(bio.JobType(99), func() {})
	assert.ErrorIs(t, err, bio.ErrUnknownJobType)
}

func TestCloseFileAndAOFFsyncJobsRun(t *testing.T) {
	p := bio.New()
	defer func() { _ = p.KillAll(context.Background()) }()

	f, err := newTempFile(t)
	require.NoError(t, err)

	require.NoError(t, p.SubmitAOFFsync(f))
	require.NoError(t, p.SubmitCloseFile(f))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, p.WaitOneStep(ctx, bio.AOFFsync))
	require.NoError(t, p.WaitOneStep(ctx, bio.CloseFile))
}
