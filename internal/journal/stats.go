package journal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Period selects the window for [Service.Stats].
type Period string

const (
	PeriodWeekly      Period = "weekly"
	PeriodMonthly     Period = "monthly"
	PeriodThreeMonths Period = "3months"
	PeriodSixMonths   Period = "6months"
	PeriodYear        Period = "1year"
)

// IsValid reports whether p is a recognised period.
func (p Period) IsValid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodThreeMonths, PeriodSixMonths, PeriodYear:
		return true
	}
	return false
}

// days returns the number of UTC calendar days the period covers.
func (p Period) days() int {
	switch p {
	case PeriodWeekly:
		return 7
	case PeriodMonthly:
		return 30
	case PeriodThreeMonths:
		return 90
	case PeriodSixMonths:
		return 180
	case PeriodYear:
		return 365
	}
	return 0
}

// Stats is the period statistics payload.
type Stats struct {
	Period Period `json:"period"`

	// Chart has one point per UTC calendar day in the period, oldest first,
	// including days with no entries.
	Chart []ChartPoint `json:"chart"`

	// Scores lists the individual sentiment scores of analysed entries in
	// the period, oldest first.
	Scores []float64 `json:"scores"`

	EntriesInPeriod int `json:"entriesInPeriod"`
	TotalEntries    int `json:"totalEntries"`
	CurrentStreak   int `json:"currentStreak"`
	LongestStreak   int `json:"longestStreak"`
}

// ChartPoint is one day of the sentiment chart.
type ChartPoint struct {
	// Date is the UTC calendar day, formatted 2006-01-02.
	Date string `json:"date"`

	// Score is the mean sentiment score of the day's analysed entries, or
	// nil when the day has none.
	Score *float64 `json:"score"`

	// Count is the number of entries written that day.
	Count int `json:"count"`
}

// Stats assembles the sentiment chart and streak counters for the period
// ending today (UTC).
func (s *Service) Stats(ctx context.Context, userID string, period Period) (Stats, error) {
	if !period.IsValid() {
		return Stats{}, fmt.Errorf("%w: unknown stats period %q", ErrInvalidInput, period)
	}

	days := period.days()
	end := utcMidnight(s.now()).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -days)

	entries, err := s.store.EntriesBetween(ctx, userID, start, end)
	if err != nil {
		return Stats{}, fmt.Errorf("journal: load entries for stats: %w", err)
	}

	type bucket struct {
		count int
		sum   float64
		nsum  int
	}
	buckets := make(map[string]*bucket, days)

	stats := Stats{Period: period, EntriesInPeriod: len(entries)}
	for _, e := range entries {
		day := utcMidnight(e.CreatedAt).Format(time.DateOnly)
		b := buckets[day]
		if b == nil {
			b = &bucket{}
			buckets[day] = b
		}
		b.count++
		if e.Sentiment != nil {
			b.sum += e.Sentiment.Score
			b.nsum++
			stats.Scores = append(stats.Scores, e.Sentiment.Score)
		}
	}

	stats.Chart = make([]ChartPoint, 0, days)
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		point := ChartPoint{Date: day.Format(time.DateOnly)}
		if b := buckets[point.Date]; b != nil {
			point.Count = b.count
			if b.nsum > 0 {
				mean := b.sum / float64(b.nsum)
				point.Score = &mean
			}
		}
		stats.Chart = append(stats.Chart, point)
	}

	user, err := s.store.User(ctx, userID)
	if err == nil {
		stats.TotalEntries = user.TotalEntries
		stats.CurrentStreak = user.CurrentStreak
		stats.LongestStreak = user.LongestStreak
	} else if !errors.Is(err, ErrNotFound) {
		return Stats{}, fmt.Errorf("journal: load user for stats: %w", err)
	}

	return stats, nil
}
