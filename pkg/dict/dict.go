package dict

import (
	"math"
	"math/rand/v2"

	"github.com/kvcore/engine/pkg/alloc"
)

// bucketPointerSize estimates the number of bytes a single chain-head
// slot costs, for the purpose of charging table allocations against an
// optional *alloc.Accountant (C1 underlies C2, per §2's control-flow
// note). It is an accounting estimate, not a portability guarantee.
const bucketPointerSize = 8

// emptyBucketGuard bounds how many empty buckets a single progressive
// rehash step will scan past before giving up for this call, per
// §4.2.3's "guard limit of 10× the requested bucket budget of empty
// visits:" one bucket requested per call, so the guard is 10.
const emptyBucketGuard = 10

// Entry is a snapshot of one key/value pair, returned by operations that
// hand back a value rather than a live reference (Sample, random-key
// lookups, iteration, scanning).
type Entry[K any, V any] struct {
	Key K
	Val V
}

// ReplaceResult reports whether Replace inserted a new entry or updated
// an existing one.
type ReplaceResult int

const (
	// Inserted means the key was not previously present.
	Inserted ReplaceResult = iota
	// Updated means the key was already present and its value was replaced.
	Updated
)

// Dict is an incrementally-resizable hash dictionary. The zero value is
// not usable; construct with New.
//
// Dict is not safe for concurrent use — see the package doc's
// Concurrency section.
type Dict[K any, V any] struct {
	typ Type[K, V]

	t0, t1 table[K, V]

	// rehashIdx is -1 when idle, otherwise the next T0 bucket index to
	// migrate.
	rehashIdx int64

	// pauseRehash is a non-negative counter; >0 forbids rehashing steps.
	pauseRehash int

	// resizingEnabled mirrors the source's global "resizing enabled"
	// toggle (e.g. disabled while a backing store snapshot is in
	// progress, so that chain-entry pointers in a forked address space
	// stay stable). Defaults to true.
	resizingEnabled bool

	acc *alloc.Accountant
	rng *rand.Rand
}

// Option configures a Dict at construction time.
type Option[K any, V any] func(*Dict[K, V])

// WithAccountant charges every table allocation against acc, wiring the
// dictionary to the allocator façade (package alloc).
func WithAccountant[K any, V any](acc *alloc.Accountant) Option[K, V] {
	return func(d *Dict[K, V]) { d.acc = acc }
}

// WithRand overrides the dictionary's source of randomness, used by
// Sample/GetRandomKey/GetFairRandomKey and by the internal cursor walk.
// Intended for deterministic tests.
func WithRand[K any, V any](rng *rand.Rand) Option[K, V] {
	return func(d *Dict[K, V]) { d.rng = rng }
}

// New creates an empty dictionary using typ for hashing, comparison, and
// optional duplication/drop/veto hooks.
func New[K any, V any](typ Type[K, V], opts ...Option[K, V]) *Dict[K, V] {
	d := &Dict[K, V]{
		typ:             typ,
		rehashIdx:       -1,
		resizingEnabled: true,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.rng == nil {
		d.rng = rand.New(rand.NewPCG(uint64(newRandSeed()), uint64(newRandSeed())))
	}

	return d
}

func newRandSeed() uint64 {
	return SipHash([]byte{byte(len(hashSeed))}) ^ hashSeed64()
}

func hashSeed64() uint64 {
	var v uint64
	for _, b := range hashSeed {
		v = v<<8 | uint64(b)
	}

	return v
}

// Len returns the total number of live entries across both tables.
func (d *Dict[K, V]) Len() uint64 {
	return d.t0.used + d.t1.used
}

// IsRehashing reports whether an incremental rehash is in progress.
func (d *Dict[K, V]) IsRehashing() bool {
	return d.rehashIdx >= 0
}

// SetResizingEnabled toggles the global resize-allowed flag referenced
// by the expansion trigger in §4.2.3.
func (d *Dict[K, V]) SetResizingEnabled(enabled bool) {
	d.resizingEnabled = enabled
}

// Find looks up key, returning its value and true if present.
func (d *Dict[K, V]) Find(key K) (V, bool) {
	d.rehashStep()

	if e := d.lookup(key); e != nil {
		return e.val, true
	}

	var zero V

	return zero, false
}

// FetchValue is equivalent to Find; retained as a distinct name because
// the source reserves fetch_value for pointer-typed values specifically.
// In Go, V is always a first-class value, so the two coincide.
func (d *Dict[K, V]) FetchValue(key K) (V, bool) {
	return d.Find(key)
}

func (d *Dict[K, V]) lookup(key K) *entry[K, V] {
	if d.t0.size() == 0 {
		return nil
	}

	h := d.typ.Hash(key)

	if e := d.findInTable(&d.t0, h, key); e != nil {
		return e
	}

	if d.rehashIdx >= 0 {
		return d.findInTable(&d.t1, h, key)
	}

	return nil
}

func (d *Dict[K, V]) findInTable(t *table[K, V], hash uint64, key K) *entry[K, V] {
	for e := t.buckets[t.bucketIndex(hash)]; e != nil; e = e.next {
		if d.typ.KeyEqual(e.key, key) {
			return e
		}
	}

	return nil
}

// Insert adds key/val, failing with ErrDuplicateKey if key is already
// present.
func (d *Dict[K, V]) Insert(key K, val V) error {
	e, err := d.addRaw(key)
	if err != nil {
		return err
	}

	e.val = d.typ.ValDup(val)

	return nil
}

// InsertOrGetSlot inserts key with its zero value if absent, returning a
// pointer the caller can use to set the value afterward (useful for
// non-pointer payloads built up in place), and whether the key already
// existed.
func (d *Dict[K, V]) InsertOrGetSlot(key K) (slot *V, existed bool) {
	e, err := d.addRaw(key)
	if err != nil {
		existing := d.lookup(key)

		return &existing.val, true
	}

	return &e.val, false
}

// Replace inserts key/val if absent, or overwrites the existing value
// (dropping the old one) if present. It performs the same single
// progressive rehash step as any other mutating operation, regardless
// of which branch it takes.
func (d *Dict[K, V]) Replace(key K, val V) ReplaceResult {
	if err := d.expandIfNeeded(); err != nil {
		// Accountant charge or size-overflow failures here mean the installed OOM
		// handler declined to abort the process; Replace has no error
		// return in its contract (matching §4.2.1), so this surfaces as
		// a panic rather than being silently swallowed.
		panic(err)
	}

	d.rehashStep()

	if e := d.lookup(key); e != nil {
		old := e.val
		e.val = d.typ.ValDup(val)
		d.typ.ValDrop(old)

		return Updated
	}

	target := &d.t0
	if d.rehashIdx >= 0 {
		target = &d.t1
	}

	h := d.typ.Hash(key)
	idx := target.bucketIndex(h)

	e := &entry[K, V]{key: d.typ.KeyDup(key), val: d.typ.ValDup(val), next: target.buckets[idx]}
	target.buckets[idx] = e
	target.used++

	return Inserted
}

// Remove deletes key, dropping both key and value, failing with
// ErrNotFound if absent.
func (d *Dict[K, V]) Remove(key K) error {
	_, err := d.removeRaw(key, true)
	return err
}

// Unlink removes key from the table without invoking the type's drop
// hooks, returning the removed entry. Callers that want the drop hooks
// invoked later must call FreeUnlinked.
func (d *Dict[K, V]) Unlink(key K) (Entry[K, V], bool) {
	e, err := d.removeRaw(key, false)
	if err != nil {
		return Entry[K, V]{}, false
	}

	return Entry[K, V]{Key: e.key, Val: e.val}, true
}

// FreeUnlinked invokes the type's drop hooks on an entry previously
// returned by Unlink.
func (d *Dict[K, V]) FreeUnlinked(e Entry[K, V]) {
	d.typ.KeyDrop(e.Key)
	d.typ.ValDrop(e.Val)
}

func (d *Dict[K, V]) removeRaw(key K, drop bool) (*entry[K, V], error) {
	d.rehashStep()

	if d.t0.size() == 0 {
		return nil, ErrNotFound
	}

	h := d.typ.Hash(key)

	if e := d.unlinkFromTable(&d.t0, h, key, drop); e != nil {
		return e, nil
	}

	if d.rehashIdx >= 0 {
		if e := d.unlinkFromTable(&d.t1, h, key, drop); e != nil {
			return e, nil
		}
	}

	return nil, ErrNotFound
}

func (d *Dict[K, V]) unlinkFromTable(t *table[K, V], hash uint64, key K, drop bool) *entry[K, V] {
	idx := t.bucketIndex(hash)

	var prev *entry[K, V]

	for e := t.buckets[idx]; e != nil; e = e.next {
		if d.typ.KeyEqual(e.key, key) {
			if prev == nil {
				t.buckets[idx] = e.next
			} else {
				prev.next = e.next
			}

			t.used--

			if drop {
				d.typ.KeyDrop(e.key)
				d.typ.ValDrop(e.val)
			}

			e.next = nil

			return e
		}

		prev = e
	}

	return nil
}

// addRaw triggers the expansion check and one rehash step, then inserts
// a fresh head entry for key into whichever table is currently the
// insertion target, failing with ErrDuplicateKey if key is already
// present anywhere in the dictionary.
func (d *Dict[K, V]) addRaw(key K) (*entry[K, V], error) {
	if err := d.expandIfNeeded(); err != nil {
		return nil, err
	}

	d.rehashStep()

	if d.lookup(key) != nil {
		return nil, ErrDuplicateKey
	}

	target := &d.t0
	if d.rehashIdx >= 0 {
		target = &d.t1
	}

	h := d.typ.Hash(key)
	idx := target.bucketIndex(h)

	e := &entry[K, V]{key: d.typ.KeyDup(key), next: target.buckets[idx]}
	target.buckets[idx] = e
	target.used++

	return e, nil
}

// Expand requests that the dictionary grow (or, on a fresh dictionary,
// initialize) to at least n slots, rounded up to a power of two.
func (d *Dict[K, V]) Expand(n uint64) error {
	if d.rehashIdx >= 0 {
		return ErrBusy
	}

	if d.t0.size() != 0 && n < d.t0.used {
		return ErrInvalidInput
	}

	target := nextPow2(n)

	if d.t0.size() != 0 && target == d.t0.size() {
		return ErrInvalidInput
	}

	if d.t0.size() == 0 {
		return d.initTable(target)
	}

	return d.beginRehashTo(target)
}

// Resize shrinks (or grows) the table to fit the current live-entry
// count exactly: target size = max(used, 4) rounded up to a power of
// two.
func (d *Dict[K, V]) Resize() error {
	if d.rehashIdx >= 0 {
		return ErrBusy
	}

	target := nextPow2(max(d.t0.used, minTableSize))

	if d.t0.size() == 0 {
		return d.initTable(target)
	}

	if target == d.t0.size() {
		return nil
	}

	return d.beginRehashTo(target)
}

func (d *Dict[K, V]) expandIfNeeded() error {
	if d.rehashIdx >= 0 {
		return nil
	}

	if d.t0.size() == 0 {
		return d.initTable(minTableSize)
	}

	if d.t0.used < d.t0.size() {
		return nil
	}

	loadFactor := float64(d.t0.used) / float64(d.t0.size())
	target := nextPow2(d.t0.used + 1)

	newBytes, overflow := byteSize(target)
	if overflow {
		return alloc.ErrSizeOverflow
	}

	allowed := (d.resizingEnabled || loadFactor > 5) &&
		d.typ.ExpandAllowed(newBytes, loadFactor)
	if !allowed {
		return nil
	}

	return d.beginRehashTo(target)
}

func (d *Dict[K, V]) initTable(size uint64) error {
	n, overflow := byteSize(size)
	if overflow {
		return alloc.ErrSizeOverflow
	}

	if d.acc != nil {
		if err := d.acc.Charge(n); err != nil {
			return err
		}
	}

	d.t0 = newTable[K, V](size)

	return nil
}

func (d *Dict[K, V]) beginRehashTo(size uint64) error {
	n, overflow := byteSize(size)
	if overflow {
		return alloc.ErrSizeOverflow
	}

	if d.acc != nil {
		if err := d.acc.Charge(n); err != nil {
			return err
		}
	}

	d.t1 = newTable[K, V](size)
	d.rehashIdx = 0

	return nil
}

func byteSize(slots uint64) (uint64, bool) {
	if slots > math.MaxUint64/bucketPointerSize {
		return 0, true
	}

	return slots * bucketPointerSize, false
}

// rehashStep performs at most one bucket of progressive rehashing, per
// §4.2.3's "progress policy". It is a no-op if paused or idle.
func (d *Dict[K, V]) rehashStep() {
	if d.pauseRehash != 0 || d.rehashIdx < 0 {
		return
	}

	idx := uint64(d.rehashIdx)
	guard := emptyBucketGuard

	for guard > 0 && idx < d.t0.size() && d.t0.buckets[idx] == nil {
		idx++
		guard--
	}

	d.rehashIdx = int64(idx)

	if guard == 0 || idx >= d.t0.size() {
		if idx >= d.t0.size() && d.t0.used == 0 {
			d.finishRehash()
		}

		return
	}

	d.migrateBucket(idx)
	d.rehashIdx = int64(idx + 1)

	if d.t0.used == 0 {
		d.finishRehash()
	}
}

func (d *Dict[K, V]) migrateBucket(idx uint64) {
	e := d.t0.buckets[idx]
	for e != nil {
		next := e.next
		h := d.typ.Hash(e.key)
		pos := d.t1.bucketIndex(h)
		e.next = d.t1.buckets[pos]
		d.t1.buckets[pos] = e
		d.t0.used--
		d.t1.used++
		e = next
	}

	d.t0.buckets[idx] = nil
}

func (d *Dict[K, V]) finishRehash() {
	if d.acc != nil {
		n, _ := byteSize(d.t0.size())
		d.acc.Uncharge(n)
	}

	d.t0 = d.t1
	d.t1 = table[K, V]{}
	d.rehashIdx = -1
}

// RehashMilliseconds migrates up to 100 buckets at a time, repeatedly,
// until either rehashing completes or the wall-clock budget elapses,
// per §4.2.3's time-budgeted variant. It is a no-op (returns
// immediately) while pause_rehash > 0. now is called to read the
// current time in milliseconds; pass a wrapper around
// time.Now().UnixMilli in production and a fake clock in tests.
func (d *Dict[K, V]) RehashMilliseconds(budgetMs int64, now func() int64) {
	if d.pauseRehash != 0 {
		return
	}

	deadline := now() + budgetMs

	for d.rehashIdx >= 0 {
		for range 100 {
			if d.rehashIdx < 0 {
				break
			}

			d.rehashStep()
		}

		if now() >= deadline {
			return
		}
	}
}
