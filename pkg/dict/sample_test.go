package dict_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvcore/engine/pkg/dict"
)

func newSeededDict() *dict.Dict[string, int] {
	return dict.New[string, int](stringIntType{}, dict.WithRand[string, int](rand.New(rand.NewPCG(1, 2))))
}

func TestGetRandomKeyOnEmptyDictReturnsFalse(t *testing.T) {
	d := newSeededDict()

	_, ok := d.GetRandomKey()
	assert.False(t, ok)
}

func TestGetRandomKeyReturnsAnExistingEntry(t *testing.T) {
	d := newSeededDict()

	want := map[string]int{}
	for i := range 20 {
		key := fmt.Sprintf("k%d", i)
		want[key] = i
		require.NoError(t, d.Insert(key, i))
	}

	for range 50 {
		e, ok := d.GetRandomKey()
		require.True(t, ok)

		v, present := want[e.Key]
		require.True(t, present)
		assert.Equal(t, v, e.Val)
	}
}

func TestGetFairRandomKeyOnEmptyDictReturnsFalse(t *testing.T) {
	d := newSeededDict()

	_, ok := d.GetFairRandomKey()
	assert.False(t, ok)
}

func TestSampleNeverExceedsRequestedOrTotalCount(t *testing.T) {
	d := newSeededDict()

	for i := range 5 {
		require.NoError(t, d.Insert(fmt.Sprintf("k%d", i), i))
	}

	got := d.Sample(100)
	assert.LessOrEqual(t, len(got), 5)
}

func TestSampleOnEmptyDictReturnsNil(t *testing.T) {
	d := newSeededDict()

	assert.Nil(t, d.Sample(10))
	assert.Nil(t, d.Sample(0))
}

func TestSampleEntriesAreAllReal(t *testing.T) {
	d := newSeededDict()

	want := map[string]int{}
	for i := range 200 {
		key := fmt.Sprintf("k%d", i)
		want[key] = i
		require.NoError(t, d.Insert(key, i))
	}

	got := d.Sample(40)
	assert.LessOrEqual(t, len(got), 200)

	for _, e := range got {
		v, ok := want[e.Key]
		require.True(t, ok)
		assert.Equal(t, v, e.Val)
	}
}
