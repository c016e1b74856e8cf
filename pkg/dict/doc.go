// Package dict implements an incrementally-resizable hash dictionary: a
// chaining hash table that rehashes progressively, one bucket at a time,
// across two backing tables instead of stopping the world to resize.
//
// # Basic usage
//
//	type stringType struct{ dict.DefaultType[string, int] }
//	func (stringType) Hash(k string) uint64     { return dict.SipHashString(k) }
//	func (stringType) KeyEqual(a, b string) bool { return a == b }
//
//	d := dict.New[string, int](stringType{})
//	_ = d.Insert("a", 1)
//	v, ok := d.Find("a")
//
// # Concurrency
//
// A Dict is not safe for concurrent use. Every operation, including
// reads, may advance the incremental rehash and is expected to run on a
// single owning goroutine — exactly the role the event loop (package
// evloop) plays for the caller that wires the two together.
//
// # Iteration
//
// Two iterator flavors are provided: [Dict.Iterate] suspends rehashing
// for its lifetime and tolerates concurrent mutation; [Dict.IterateUnsafe]
// does not suspend rehashing and instead verifies, via a fingerprint, that
// no mutation occurred between open and release — a violation panics,
// matching the source's "programming error" policy. [Dict.ScanCursor]
// offers a third, stateless style for background traversal that must
// tolerate concurrent resizes without holding any iterator state between
// calls.
package dict
