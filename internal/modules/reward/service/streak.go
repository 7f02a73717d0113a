package service

import "time"

const isoDate = "2006-01-02"

// CurrentStreak counts consecutive login days ending today. loginDates are ISO dates
// in any order; unparseable values are ignored. If today has no login the streak is 0.
func CurrentStreak(loginDates []string, today time.Time) int {
	days := make(map[string]struct{}, len(loginDates))
	for _, d := range loginDates {
		if _, err := time.Parse(isoDate, d); err != nil {
			continue
		}
		days[d] = struct{}{}
	}

	day := truncateDay(today)
	streak := 0
	for {
		if _, ok := days[day.Format(isoDate)]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}

// Milestones returns the milestone lengths (7, 30) that streak is a positive multiple
// of. They fire independently, so day 210 yields both.
func Milestones(streak int) []int {
	if streak <= 0 {
		return nil
	}
	var hit []int
	for _, every := range []int{7, 30} {
		if streak%every == 0 {
			hit = append(hit, every)
		}
	}
	return hit
}

func LoginDay(t time.Time) string {
	return t.UTC().Format(isoDate)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
