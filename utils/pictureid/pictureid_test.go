package pictureid

import (
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsValidAndLowercase(t *testing.T) {
	id := New()

	assert.True(t, strings.HasPrefix(id, "pic_"))
	assert.Equal(t, strings.ToLower(id), id)
	assert.True(t, IsValid(id))

	parsed, err := Parse(id)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimPrefix(id, "pic_"), strings.ToLower(parsed.String()))
}

func TestIsValidRejectsForeignIDs(t *testing.T) {
	assert.False(t, IsValid("jan_01hzx0000000000000000000"))
	assert.False(t, IsValid("pic_not-a-ulid"))
	assert.False(t, IsValid(""))
}

func TestNewIsMonotonicAndUniqueUnderConcurrency(t *testing.T) {
	const n = 200
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = New()
		}(i)
	}
	wg.Wait()

	seen := map[string]struct{}{}
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, id)
		seen[id] = struct{}{}
	}

	sequential := []string{New(), New(), New()}
	assert.True(t, sort.StringsAreSorted(sequential))
}
