package alloc_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvcore/engine/pkg/alloc"
)

func TestReportingChargeAndUncharge(t *testing.T) {
	a := alloc.New(alloc.Options{Limit: 1024})

	require.NoError(t, a.TryCharge(100))
	assert.Equal(t, uint64(100), a.Used())

	a.Uncharge(40)
	assert.Equal(t, uint64(60), a.Used())
}

func TestTryChargeExceedsLimitReturnsError(t *testing.T) {
	a := alloc.New(alloc.Options{Limit: 100})

	require.NoError(t, a.TryCharge(100))

	err := a.TryCharge(1)
	require.ErrorIs(t, err, alloc.ErrOutOfMemory)
	assert.Equal(t, uint64(100), a.Used())
}

func TestTryChargeOverflow(t *testing.T) {
	a := alloc.New(alloc.Options{})

	require.NoError(t, a.TryCharge(math.MaxUint64-10))

	err := a.TryCharge(20)
	require.ErrorIs(t, err, alloc.ErrSizeOverflow)
}

func TestUnchargeClampsAtZero(t *testing.T) {
	a := alloc.New(alloc.Options{})

	a.Uncharge(50)
	assert.Equal(t, uint64(0), a.Used())
}

func TestPrefixTrackedExcludesPrefixFromUsedCounter(t *testing.T) {
	a := alloc.NewPrefixTracked(alloc.Options{})

	require.NoError(t, a.TryCharge(16))
	assert.Equal(t, uint64(16), a.Used(), "used-bytes counter excludes the tracking prefix")
}

func TestPrefixTrackedOverflowAccountsForPrefix(t *testing.T) {
	a := alloc.NewPrefixTracked(alloc.Options{})

	err := a.TryCharge(math.MaxUint64 - alloc.PrefixSize + 1)
	require.ErrorIs(t, err, alloc.ErrSizeOverflow)
}

func TestChargeInvokesOOMHandlerOnFailure(t *testing.T) {
	var called bool

	a := alloc.New(alloc.Options{
		Limit: 10,
		OnOOM: func(requested, limit uint64) {
			called = true
			assert.Equal(t, uint64(11), requested)
			assert.Equal(t, uint64(10), limit)
		},
	})

	err := a.Charge(11)
	require.ErrorIs(t, err, alloc.ErrOutOfMemory)
	assert.True(t, called)
}

func TestConcurrentChargesStayConsistent(t *testing.T) {
	a := alloc.New(alloc.Options{})

	const goroutines = 50

	done := make(chan struct{})
	for range goroutines {
		go func() {
			defer func() { done <- struct{}{} }()

			for range 100 {
				require.NoError(t, a.TryCharge(1))
			}
		}()
	}

	for range goroutines {
		<-done
	}

	assert.Equal(t, uint64(goroutines*100), a.Used())
}
