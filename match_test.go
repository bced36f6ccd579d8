package comics_test

import (
	"testing"

	"github.com/fwojciec/comics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioIndex(t *testing.T) comics.Index {
	t.Helper()
	snap, err := comics.NewSnapshotFromComics(barrel(), treeRing())
	require.NoError(t, err)
	return snap.Index
}

func TestFindBest(t *testing.T) {
	t.Parallel()

	t.Run("returns strongest entry", func(t *testing.T) {
		t.Parallel()

		m, ok := comics.FindBest(comics.Normalize("tree calendar"), scenarioIndex(t))

		require.True(t, ok)
		assert.Equal(t, comics.Match{Num: 2, Strength: 2}, m)
	})

	t.Run("signals no match when nothing overlaps", func(t *testing.T) {
		t.Parallel()

		_, ok := comics.FindBest(comics.Normalize("xyzzy"), scenarioIndex(t))

		assert.False(t, ok)
	})

	t.Run("signals no match for empty index", func(t *testing.T) {
		t.Parallel()

		_, ok := comics.FindBest(comics.Normalize("tree"), nil)

		assert.False(t, ok)
	})

	t.Run("signals no match for empty query", func(t *testing.T) {
		t.Parallel()

		_, ok := comics.FindBest(comics.Normalize(""), scenarioIndex(t))

		assert.False(t, ok)
	})

	t.Run("breaks ties by lowest number", func(t *testing.T) {
		t.Parallel()

		index := comics.Index{
			{Keywords: comics.Keywords{"cat", "hat"}, Num: 3},
			{Keywords: comics.Keywords{"cat", "dog"}, Num: 7},
			{Keywords: comics.Keywords{"cat"}, Num: 5},
		}

		m, ok := comics.FindBest(comics.Keywords{"cat"}, index)

		require.True(t, ok)
		assert.Equal(t, comics.Match{Num: 3, Strength: 1}, m)
	})

	t.Run("tie-break does not depend on index order", func(t *testing.T) {
		t.Parallel()

		index := comics.Index{
			{Keywords: comics.Keywords{"cat", "dog"}, Num: 9},
			{Keywords: comics.Keywords{"cat", "dog"}, Num: 4},
		}

		m, ok := comics.FindBest(comics.Keywords{"cat", "dog"}, index)

		require.True(t, ok)
		assert.Equal(t, 4, m.Num)
	})
}

func TestFindBest_Monotonic(t *testing.T) {
	t.Parallel()

	index := scenarioIndex(t)
	strength := func(query comics.Keywords, num int) int {
		for _, e := range index {
			if e.Num == num {
				return e.Keywords.Overlap(query)
			}
		}
		return 0
	}

	query := comics.Normalize("tree")
	for _, token := range []string{"calendar", "ring", "barrel", "xyzzy"} {
		grown := comics.Normalize(query.Key() + " " + token)
		for _, e := range index {
			assert.GreaterOrEqual(t, strength(grown, e.Num), strength(query, e.Num),
				"adding %q decreased strength of #%d", token, e.Num)
		}
		query = grown
	}

	m, ok := comics.FindBest(query, index)
	require.True(t, ok)
	assert.Equal(t, comics.Match{Num: 2, Strength: 3}, m)
}

func TestRank(t *testing.T) {
	t.Parallel()

	index := comics.Index{
		{Keywords: comics.Keywords{"cat", "hat"}, Num: 3},
		{Keywords: comics.Keywords{"cat", "dog", "hat"}, Num: 7},
		{Keywords: comics.Keywords{"bird"}, Num: 1},
		{Keywords: comics.Keywords{"cat"}, Num: 5},
	}

	t.Run("orders by strength then number", func(t *testing.T) {
		t.Parallel()

		got := comics.Rank(comics.Keywords{"cat", "hat"}, index, 0)

		assert.Equal(t, []comics.Match{
			{Num: 3, Strength: 2},
			{Num: 7, Strength: 2},
			{Num: 5, Strength: 1},
		}, got)
	})

	t.Run("applies limit", func(t *testing.T) {
		t.Parallel()

		got := comics.Rank(comics.Keywords{"cat", "hat"}, index, 1)

		assert.Equal(t, []comics.Match{{Num: 3, Strength: 2}}, got)
	})

	t.Run("returns nothing without overlap", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, comics.Rank(comics.Keywords{"fish"}, index, 0))
	})
}
