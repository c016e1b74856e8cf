// Package alloc provides a size-tracked accounting façade over Go's
// built-in allocator.
//
// Go has no pluggable allocator to intercept, so this package does not
// allocate memory itself; it tracks the sizes callers declare for their
// own logical allocations (slices, arenas, whatever a caller decides to
// charge against the budget) in a process-wide atomic counter, and routes
// allocation failures — which in this façade means "the caller-supplied
// limit would be exceeded" or "the requested size overflows" — through an
// installable out-of-memory handler.
//
// # Basic usage
//
//	a := alloc.New(alloc.Options{Limit: 1 << 30})
//	if err := a.Charge(4096); err != nil {
//		// OOM handler already ran; err is ErrOutOfMemory unless Try was used.
//	}
//	defer a.Uncharge(4096)
//
// # Two accounting modes
//
// An accountant from [New] tracks exactly the sizes callers charge it with — the
// façade trusts the caller to report the true usable size of its
// allocation, mirroring a backend allocator that can report usable size
// for any live pointer.
//
// An accountant from [NewPrefixTracked] additionally reserves [PrefixSize] bytes per charge to
// simulate a backend that cannot report usable size and must keep a
// side-channel record; its used-bytes counter does not include the
// prefix overhead, matching the source's policy of excluding the prefix
// from the publicly visible counter.
package alloc
