package dict

// Type supplies the polymorphic operations a Dict needs for keys of type
// K and values of type V. It replaces the source's struct of function
// pointers plus opaque context: a Go interface, parameterized on the key
// and value types, implemented by whatever the caller embeds.
//
// Hash and KeyEqual have no sensible default and must always be supplied.
// The remaining methods are, in spirit, "optional" the way the source
// allows omitting them — callers get that behavior for free by embedding
// [DefaultType], which implements shallow-copy duplication, no-op drops,
// and an always-true ExpandAllowed veto.
type Type[K any, V any] interface {
	// Hash returns the hash of key. Must be deterministic for the
	// lifetime of any Dict built on this Type.
	Hash(key K) uint64

	// KeyEqual reports whether a and b are the same key.
	KeyEqual(a, b K) bool

	// KeyDup returns the value to store as a chain entry's key, given
	// the key passed to Insert/Replace. The default is an identity copy.
	KeyDup(key K) K

	// ValDup returns the value to store as a chain entry's value. The
	// default is an identity copy.
	ValDup(val V) V

	// KeyDrop is called when a key is removed from the dictionary
	// (Remove, and FreeUnlinked after Unlink). Replace never drops the
	// old key — only values are replaced in place.
	KeyDrop(key K)

	// ValDrop is called when a value is removed or overwritten.
	ValDrop(val V)

	// ExpandAllowed receives the proposed new table size in bytes and
	// the dictionary's current load factor, and may veto an
	// automatic (non-explicit) expansion by returning false. The
	// default always returns true.
	ExpandAllowed(newBytes uint64, loadFactor float64) bool
}

// DefaultType provides default, no-op implementations of every Type
// method except Hash and KeyEqual. Embed it in a concrete type and
// implement Hash/KeyEqual (and optionally override any of the rest) to
// satisfy Type with minimal boilerplate.
type DefaultType[K any, V any] struct{}

// KeyDup returns key unchanged.
func (DefaultType[K, V]) KeyDup(key K) K { return key }

// ValDup returns val unchanged.
func (DefaultType[K, V]) ValDup(val V) V { return val }

// KeyDrop does nothing.
func (DefaultType[K, V]) KeyDrop(K) {}

// ValDrop does nothing.
func (DefaultType[K, V]) ValDrop(V) {}

// ExpandAllowed always permits expansion.
func (DefaultType[K, V]) ExpandAllowed(uint64, float64) bool { return true }
