package service

import (
	"testing"

	"anoa.com/memberclub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankBoundaries(t *testing.T) {
	table := DefaultRankTable()

	cases := []struct {
		total int
		want  string
	}{
		{-500, "Newcomer"},
		{0, "Newcomer"},
		{99, "Newcomer"},
		{100, "Member"},
		{599, "Member"},
		{600, "Regular"},
		{2999, "Regular"},
		{3000, "Contributor"},
		{7999, "Contributor"},
		{8000, "Veteran"},
		{19999, "Veteran"},
		{20000, "Legend"},
		{1_000_000, "Legend"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, table.Rank(tc.total).Name, "total=%d", tc.total)
	}
}

func TestRankIsMonotonic(t *testing.T) {
	table := DefaultRankTable()

	prev := table.Rank(-100).Index
	for total := -100; total <= 25000; total++ {
		idx := table.Rank(total).Index
		require.GreaterOrEqual(t, idx, prev, "rank decreased at total=%d", total)
		prev = idx

		next := table.PointsToNextRank(total)
		if idx == len(table.Tiers())-1 {
			require.Nil(t, next, "top tier must have no next rank (total=%d)", total)
		} else {
			require.NotNil(t, next, "total=%d", total)
			require.Positive(t, *next)
		}
	}
}

func TestPointsToNextRank(t *testing.T) {
	table := DefaultRankTable()

	require.Equal(t, 100, *table.PointsToNextRank(0))
	require.Equal(t, 1, *table.PointsToNextRank(99))
	require.Equal(t, 500, *table.PointsToNextRank(100))
	require.Equal(t, 150, *table.PointsToNextRank(-50))
	require.Nil(t, table.PointsToNextRank(20000))
}

func TestNewRankTableRejectsBadLadders(t *testing.T) {
	_, err := NewRankTable(nil)
	require.Error(t, err)

	_, err = NewRankTable([]config.RankLevel{{Name: "A", MinPoints: 5}})
	require.Error(t, err)

	_, err = NewRankTable([]config.RankLevel{{Name: "A", MinPoints: 0}, {Name: "B", MinPoints: 0}})
	require.Error(t, err)
}

func TestStatusWithWeekly(t *testing.T) {
	table := DefaultRankTable()

	status := table.StatusWithWeekly(300, 60)
	assert.Equal(t, "Member", status.RankName)
	assert.Equal(t, "Regular", status.NextRank)
	assert.Equal(t, 600, status.TargetPoints)
	assert.Equal(t, 50.0, status.Progress)
	assert.Equal(t, "⚡ Trending", status.WeeklyLabel)

	top := table.StatusWithWeekly(25000, 0)
	assert.Equal(t, "Legend", top.RankName)
	assert.Equal(t, MaxLevel, top.NextRank)
	assert.Equal(t, 100.0, top.Progress)
	assert.Empty(t, top.WeeklyLabel)

	negative := table.StatusWithWeekly(-20, 0)
	assert.Equal(t, "Newcomer", negative.RankName)
	assert.Equal(t, 0.0, negative.Progress)
}
