// Package stats reshapes dashboard statistics for charting.
package stats

import (
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// DailyStat is the number of classes scheduled on one date, as reported by the API.
type DailyStat struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type WeekdayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// ByWeekday sums the counts per day of week, Monday first.
// All seven days are always present; entries with unparseable dates are skipped.
func ByWeekday(daily []DailyStat) []WeekdayCount {
	var totals [7]int
	for _, stat := range daily {
		date, err := parseDate(stat.Date)
		if err != nil {
			continue
		}
		totals[date.Weekday()] += stat.Count
	}
	counts := make([]WeekdayCount, 0, len(weekdayOrder))
	for _, day := range weekdayOrder {
		counts = append(counts, WeekdayCount{Day: day.String()[:3], Count: totals[day]})
	}
	return counts
}

// FillGaps returns exactly one entry per calendar day of the days-long window ending at end,
// in ascending order. Missing days have a zero count, repeated dates are summed and dates
// outside the window are dropped.
func FillGaps(daily []DailyStat, days int, end time.Time) []DailyStat {
	if days <= 0 {
		return []DailyStat{}
	}
	last := civilDate(end)
	first := last.AddDate(0, 0, -(days - 1))

	totals := make(map[string]int, len(daily))
	for _, stat := range daily {
		date, err := parseDate(stat.Date)
		if err != nil || date.Before(first) || date.After(last) {
			continue
		}
		totals[date.Format(dateLayout)] += stat.Count
	}

	filled := make([]DailyStat, 0, days)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		filled = append(filled, DailyStat{Date: key, Count: totals[key]})
	}
	return filled
}

// Sorted returns a copy of daily ordered by date; unparseable dates go last.
func Sorted(daily []DailyStat) []DailyStat {
	sorted := append([]DailyStat(nil), daily...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, errA := parseDate(sorted[i].Date)
		b, errB := parseDate(sorted[j].Date)
		if errA != nil || errB != nil {
			return errA == nil
		}
		return a.Before(b)
	})
	return sorted
}

// parseDate keeps the calendar date as written, ignoring any time of day or offset.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return civilDate(t), nil
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
