package dict

// fairSampleSize bounds how many entries GetFairRandomKey samples before
// picking uniformly among them, per §4.2.1's "samples up to 15 entries".
const fairSampleSize = 15

// collectBucket returns every live entry logically occupying cursor
// position idx: when idle, that is simply T0[idx & T0.sizemask]; when
// rehashing, it is T1[idx & T1.sizemask] plus T0[idx & T0.sizemask] *if*
// that T0 bucket has not yet been migrated away (idx & T0.sizemask is
// still ≥ rehash_idx).
func (d *Dict[K, V]) collectBucket(idx uint64) []Entry[K, V] {
	var out []Entry[K, V]

	if d.rehashIdx < 0 {
		for e := d.t0.buckets[idx&d.t0.sizemask]; e != nil; e = e.next {
			out = append(out, Entry[K, V]{Key: e.key, Val: e.val})
		}

		return out
	}

	if (idx & d.t0.sizemask) >= uint64(d.rehashIdx) {
		for e := d.t0.buckets[idx&d.t0.sizemask]; e != nil; e = e.next {
			out = append(out, Entry[K, V]{Key: e.key, Val: e.val})
		}
	}

	for e := d.t1.buckets[idx&d.t1.sizemask]; e != nil; e = e.next {
		out = append(out, Entry[K, V]{Key: e.key, Val: e.val})
	}

	return out
}

func (d *Dict[K, V]) maxCursorMask() uint64 {
	mask := d.t0.sizemask
	if d.rehashIdx >= 0 && d.t1.sizemask > mask {
		mask = d.t1.sizemask
	}

	return mask
}

// GetRandomKey returns a uniformly chosen non-empty bucket, then a
// uniformly chosen entry within its chain.
func (d *Dict[K, V]) GetRandomKey() (Entry[K, V], bool) {
	d.rehashStep()

	if d.Len() == 0 {
		return Entry[K, V]{}, false
	}

	mask := d.maxCursorMask()

	for {
		idx := d.rng.Uint64N(mask + 1)

		bucket := d.collectBucket(idx)
		if len(bucket) > 0 {
			return bucket[d.rng.IntN(len(bucket))], true
		}
	}
}

// GetFairRandomKey samples up to fairSampleSize entries and returns a
// uniformly chosen one among them, falling back to GetRandomKey when
// the dictionary is sparse enough that no entries were sampled.
func (d *Dict[K, V]) GetFairRandomKey() (Entry[K, V], bool) {
	samples := d.Sample(fairSampleSize)
	if len(samples) == 0 {
		return d.GetRandomKey()
	}

	return samples[d.rng.IntN(len(samples))], true
}

// Sample returns up to n entries gathered by walking buckets forward
// from a random starting point, per §4.2.6. It may return duplicates
// across separate calls but never within a single call.
func (d *Dict[K, V]) Sample(n int) []Entry[K, V] {
	d.rehashStep()

	total := d.Len()
	if total == 0 || n <= 0 {
		return nil
	}

	if uint64(n) > total {
		n = int(total)
	}

	stepBudget := 10 * n
	mask := d.maxCursorMask()
	cursor := d.rng.Uint64N(mask + 1)

	var (
		results     []Entry[K, V]
		emptyStreak int
	)

	for len(results) < n && stepBudget > 0 {
		stepBudget--

		bucket := d.collectBucket(cursor)
		if len(bucket) > 0 {
			results = append(results, bucket[:min(len(bucket), n-len(results))]...)
			emptyStreak = 0
		} else {
			emptyStreak++
			if emptyStreak > n {
				cursor = d.rng.Uint64N(mask + 1)
				emptyStreak = 0

				continue
			}
		}

		cursor++
	}

	return results
}
