package id

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUniqueAndSorted(t *testing.T) {
	t.Parallel()

	const n = 512
	ids := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		s := New()
		require.Len(t, s, 26)
		require.False(t, seen[s], "duplicate id %s", s)
		seen[s] = true
		ids = append(ids, s)
	}

	assert.True(t, sort.StringsAreSorted(ids), "ids should be minted in increasing order")
}

func TestShort(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "01J8ZY9X", Short("01J8ZY9XK2T4Q6R8S0V2W4X6Y8"))
	assert.Equal(t, "abc", Short("abc"))
	assert.Equal(t, "", Short(""))
}
