package alloc

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"
)

// PrefixSize is the number of bytes a PrefixTracked accountant reserves
// ahead of every charge to simulate an out-of-band size record, for
// backends that cannot report the usable size of a live allocation.
const PrefixSize = 8

// OOMHandler is invoked when a charge cannot be satisfied via Charge (the
// non-Try path). The default handler prints to stderr and calls
// os.Exit(1), mirroring the source's "print and abort" default.
type OOMHandler func(requested uint64, limit uint64)

// DefaultOOMHandler is the out-of-the-box OOMHandler: it prints a
// diagnostic and terminates the process.
func DefaultOOMHandler(requested, limit uint64) {
	fmt.Fprintf(os.Stderr, "alloc: out of memory: requested %d bytes, limit %d bytes\n", requested, limit)
	os.Exit(1)
}

// Options configures an Accountant.
type Options struct {
	// Limit is the maximum number of bytes the accountant will charge
	// before refusing further charges. Zero means unlimited.
	Limit uint64

	// OnOOM is invoked by Charge (not TryCharge) when a charge would
	// exceed Limit or overflow. Defaults to DefaultOOMHandler.
	OnOOM OOMHandler
}

// Accountant tracks a process-wide count of bytes attributed to user
// code. It never allocates memory itself; callers charge and uncharge
// the sizes of allocations they make through ordinary Go mechanisms.
type Accountant struct {
	used  atomic.Uint64
	limit uint64
	onOOM OOMHandler
	// prefixed is true for accountants created via NewPrefixTracked;
	// every charge additionally reserves PrefixSize bytes that are
	// counted toward the overflow check but never added to used.
	prefixed bool
}

// New creates a reporting-mode Accountant: callers report the exact
// usable size of each allocation and that size is charged in full.
func New(opts Options) *Accountant {
	return newAccountant(opts, false)
}

// NewPrefixTracked creates a prefix-mode Accountant: every charge
// reserves an additional PrefixSize bytes (as if storing the requested
// size in a header ahead of the allocation), but only the caller-visible
// size is added to the reported used-bytes counter.
func NewPrefixTracked(opts Options) *Accountant {
	return newAccountant(opts, true)
}

func newAccountant(opts Options, prefixed bool) *Accountant {
	onOOM := opts.OnOOM
	if onOOM == nil {
		onOOM = DefaultOOMHandler
	}

	return &Accountant{
		limit:    opts.Limit,
		onOOM:    onOOM,
		prefixed: prefixed,
	}
}

// Used returns the number of bytes currently charged.
func (a *Accountant) Used() uint64 {
	return a.used.Load()
}

// Charge records a logical allocation of size bytes. If the charge would
// overflow or exceed the configured limit, the OOM handler is invoked;
// if that handler returns (the default does not), ErrOutOfMemory is
// returned.
func (a *Accountant) Charge(size uint64) error {
	err := a.TryCharge(size)
	if err != nil {
		a.onOOM(size, a.limit)
		return err
	}

	return nil
}

// TryCharge records a logical allocation of size bytes, returning
// ErrOutOfMemory or ErrSizeOverflow instead of invoking the OOM handler.
func (a *Accountant) TryCharge(size uint64) error {
	// billedSize folds in the tracking prefix (if any) purely to catch an
	// allocation whose *real* footprint overflows; the counter itself
	// only ever reflects the caller-visible size, per §4.1.
	if _, err := a.billedSize(size); err != nil {
		return err
	}

	for {
		cur := a.used.Load()

		total, overflowed := addOverflows(cur, size)
		if overflowed {
			return ErrSizeOverflow
		}

		if a.limit != 0 && total > a.limit {
			return ErrOutOfMemory
		}

		if a.used.CompareAndSwap(cur, total) {
			return nil
		}
	}
}

// Uncharge reverses a prior successful Charge/TryCharge of size bytes.
// Undercharging below zero is a caller bug; Uncharge clamps to zero
// rather than wrapping, since an unsigned underflow here would silently
// corrupt the counter for the rest of the process.
func (a *Accountant) Uncharge(size uint64) {
	for {
		cur := a.used.Load()

		var next uint64
		if size > cur {
			next = 0
		} else {
			next = cur - size
		}

		if a.used.CompareAndSwap(cur, next) {
			return
		}
	}
}

// billedSize returns the size counted toward the overflow check: just
// size in reporting mode, size+PrefixSize in prefix mode. The
// used-bytes counter itself only ever reflects size, per §4.1.
func (a *Accountant) billedSize(size uint64) (uint64, error) {
	if !a.prefixed {
		return size, nil
	}

	billed, overflowed := addOverflows(size, PrefixSize)
	if overflowed {
		return 0, ErrSizeOverflow
	}

	return billed, nil
}

func addOverflows(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a || sum > math.MaxUint64
}
