package service

import (
	"fmt"
	"math"
	"sort"

	"anoa.com/memberclub/internal/config"
	"anoa.com/memberclub/pkg/dto"
)

// Weekly activity thresholds
const (
	WeeklyOnFire   = 100
	WeeklyTrending = 50
	WeeklyActive   = 20
)

const MaxLevel = "Max Level"

type RankTier struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	MinPoints int    `json:"min_points"`
}

// RankTable maps point totals to tiers. Thresholds are strictly increasing and the
// first one is 0.
type RankTable struct {
	tiers []RankTier
}

func NewRankTable(levels []config.RankLevel) (*RankTable, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("rank table is empty")
	}
	if levels[0].MinPoints != 0 {
		return nil, fmt.Errorf("first rank must start at 0 points")
	}

	tiers := make([]RankTier, len(levels))
	for i, level := range levels {
		if i > 0 && level.MinPoints <= levels[i-1].MinPoints {
			return nil, fmt.Errorf("rank thresholds must be strictly increasing at %q", level.Name)
		}
		tiers[i] = RankTier{Index: i, Name: level.Name, MinPoints: level.MinPoints}
	}
	return &RankTable{tiers: tiers}, nil
}

// DefaultRankTable panics only if the built-in ladder is broken.
func DefaultRankTable() *RankTable {
	table, err := NewRankTable(config.DefaultRewards().Ranks)
	if err != nil {
		panic(err)
	}
	return table
}

// Rank returns the highest tier whose threshold is <= total. Negative totals sit in
// the first tier.
func (t *RankTable) Rank(total int) RankTier {
	i := sort.Search(len(t.tiers), func(i int) bool {
		return t.tiers[i].MinPoints > total
	})
	if i == 0 {
		return t.tiers[0]
	}
	return t.tiers[i-1]
}

// Next returns the tier after tier, or false at the top.
func (t *RankTable) Next(tier RankTier) (RankTier, bool) {
	if tier.Index+1 >= len(t.tiers) {
		return RankTier{}, false
	}
	return t.tiers[tier.Index+1], true
}

// PointsToNextRank is nil at the top tier.
func (t *RankTable) PointsToNextRank(total int) *int {
	next, ok := t.Next(t.Rank(total))
	if !ok {
		return nil
	}
	remaining := next.MinPoints - total
	return &remaining
}

func (t *RankTable) ByName(name string) (RankTier, bool) {
	for _, tier := range t.tiers {
		if tier.Name == name {
			return tier, true
		}
	}
	return RankTier{}, false
}

func (t *RankTable) Tiers() []RankTier {
	out := make([]RankTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// StatusWithWeekly ranks by the all-time total; the weekly label only reflects the
// last 7 days.
func (t *RankTable) StatusWithWeekly(allTimePoints, weeklyPoints int) dto.GamificationStatus {
	var status dto.GamificationStatus
	status.CurrentPoints = allTimePoints
	status.WeeklyPoints = weeklyPoints

	current := t.Rank(allTimePoints)
	status.RankName = current.Name

	if next, ok := t.Next(current); ok {
		status.NextRank = next.Name
		status.TargetPoints = next.MinPoints
		if allTimePoints > 0 {
			status.Progress = float64(allTimePoints) / float64(next.MinPoints) * 100
		}
	} else {
		status.NextRank = MaxLevel
		status.TargetPoints = current.MinPoints
		status.Progress = 100
	}

	switch {
	case weeklyPoints >= WeeklyOnFire:
		status.WeeklyLabel = "🔥 On Fire!"
	case weeklyPoints >= WeeklyTrending:
		status.WeeklyLabel = "⚡ Trending"
	case weeklyPoints >= WeeklyActive:
		status.WeeklyLabel = "📈 Active"
	default:
		status.WeeklyLabel = ""
	}

	// Round progress to 2 decimal places
	status.Progress = math.Round(status.Progress*100) / 100

	return status
}
