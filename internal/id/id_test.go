package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		s := New()
		assert.Len(t, s, 26)
		assert.False(t, seen[s], "duplicate id %s", s)
		seen[s] = true
	}
}

func TestAtSortsByDay(t *testing.T) {
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	later := At(d2)
	earlier := At(d1)

	ids := []string{later, earlier}
	sort.Strings(ids)
	assert.Equal(t, []string{earlier, later}, ids)
}

func TestTimeRoundTrip(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	got, err := Time(At(day))
	require.NoError(t, err)
	assert.True(t, got.Equal(day))

	_, err = Time("not-a-ulid")
	assert.Error(t, err)
}
