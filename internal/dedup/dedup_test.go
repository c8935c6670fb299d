package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsync/internal/clock"
)

// addAll adds ids in order and returns the ones that were new.
func addAll(s *Set, ids ...string) []string {
	var fresh []string
	for _, id := range ids {
		if s.Add(id) {
			fresh = append(fresh, id)
		}
	}
	return fresh
}

func TestAddReportsNewIDsOnce(t *testing.T) {
	s := New(10, 0, nil)

	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("a"))
	assert.True(t, s.Add("b"))
	assert.False(t, s.Add(""), "empty ids are never delivered as new")
	assert.Equal(t, 2, s.size())
}

func TestAddAcrossOverlappingPages(t *testing.T) {
	s := New(10, 0, nil)

	first := addAll(s, "1", "2", "3")
	second := addAll(s, "2", "3", "4", "4", "5")

	assert.Equal(t, []string{"1", "2", "3"}, first)
	assert.Equal(t, []string{"4", "5"}, second)
}

func TestCapacityEvictsOldest(t *testing.T) {
	s := New(3, 0, nil)
	addAll(s, "1", "2", "3", "4")

	require.Equal(t, 3, s.size())
	assert.False(t, s.contains("1"))
	assert.True(t, s.contains("4"))
	assert.True(t, s.Add("1"), "evicted id counts as new again")
}

func TestRepeatAddRefreshesRecency(t *testing.T) {
	s := New(2, 0, nil)
	s.Add("a")
	s.Add("b")
	s.Add("a")
	s.Add("c")

	assert.True(t, s.contains("a"))
	assert.False(t, s.contains("b"))
}

func TestWindowForgetsOldIDs(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	s := New(100, time.Minute, clk)

	s.Add("old")
	clk.Advance(30 * time.Second)
	s.Add("recent")
	clk.Advance(31 * time.Second)

	assert.False(t, s.contains("old"))
	assert.True(t, s.contains("recent"))
	assert.Equal(t, 1, s.size())
}

func TestClear(t *testing.T) {
	s := New(10, 0, nil)
	addAll(s, "1", "2")
	s.Clear()

	assert.Zero(t, s.size())
	assert.True(t, s.Add("1"))
}
