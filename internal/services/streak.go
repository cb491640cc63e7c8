package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// StreakStats describes consecutive days with at least one transaction.
type StreakStats struct {
	Current       int
	Longest       int
	IsActiveToday bool
	LastActive    core.Date
}

// CalculateStreak reduces times to calendar days in their own location and
// measures the streaks ending at today.
func CalculateStreak(times []time.Time, today core.Date) StreakStats {
	if len(times) == 0 {
		return StreakStats{}
	}

	seen := make(map[core.Date]struct{}, len(times))
	days := make([]core.Date, 0, len(times))
	for _, t := range times {
		d := core.DateOf(t)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	slices.SortFunc(days, func(a, b core.Date) int { return b.Compare(a.Time) })

	stats := StreakStats{
		IsActiveToday: days[0].Equal(today.Time),
		LastActive:    days[0],
	}

	cursor := today
	if !stats.IsActiveToday {
		cursor = today.AddDays(-1)
	}
	for {
		if _, ok := seen[cursor]; !ok {
			break
		}
		stats.Current++
		cursor = cursor.AddDays(-1)
	}

	run := 1
	stats.Longest = 1
	for i := 1; i < len(days); i++ {
		if days[i-1].AddDays(-1).Equal(days[i].Time) {
			run++
		} else {
			run = 1
		}
		stats.Longest = max(stats.Longest, run)
	}
	stats.Longest = max(stats.Longest, stats.Current)
	return stats
}

type StreakService struct {
	store ports.TransactionStore
}

func NewStreakService(store ports.TransactionStore) *StreakService {
	return &StreakService{store: store}
}

// Stats computes the streak as of now's calendar day.
func (s *StreakService) Stats(ctx context.Context, now time.Time) (StreakStats, error) {
	times, err := s.store.ListTransactionTimes(ctx)
	if err != nil {
		return StreakStats{}, fmt.Errorf("list transaction times: %w", err)
	}
	loc := now.Location()
	for i := range times {
		times[i] = times[i].In(loc)
	}
	return CalculateStreak(times, core.DateOf(now)), nil
}
