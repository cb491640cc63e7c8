// Package services holds the operations that span storage, the ledgers and
// the event bus: recurring rules, transactions, budgets and streaks.
//
// Each recurring frequency has a Cadence strategy that computes the next
// occurrence of a rule from its anchor date.
package services

import (
	"fmt"
	"sync"
	"time"

	"fintrack/internal/core"
)

// Cadence computes the next occurrence of a rule anchored at anchor.
type Cadence interface {
	// Next returns the first occurrence strictly after the after date.
	// Occurrences never precede anchor.
	Next(after, anchor core.Date) core.Date
}

type DailyCadence struct{}

func (DailyCadence) Next(after, anchor core.Date) core.Date {
	if anchor.After(after.Time) {
		return anchor
	}
	return after.AddDays(1)
}

type WeeklyCadence struct{}

func (WeeklyCadence) Next(after, anchor core.Date) core.Date {
	if anchor.After(after.Time) {
		return anchor
	}
	days := int(after.Sub(anchor.Time).Hours() / 24)
	return anchor.AddDays((days/7 + 1) * 7)
}

// MonthlyCadence fires on the anchor's day of month, or on the last day of
// shorter months.
type MonthlyCadence struct{}

func (MonthlyCadence) Next(after, anchor core.Date) core.Date {
	if anchor.After(after.Time) {
		return anchor
	}
	year, month := after.Year(), after.Month()
	candidate := clampedDate(year, month, anchor.Day())
	if !candidate.After(after.Time) {
		month++
		if month > 12 {
			month = 1
			year++
		}
		candidate = clampedDate(year, month, anchor.Day())
	}
	return candidate
}

// YearlyCadence fires on the anchor's month and day; a 29 February anchor
// fires on 28 February in common years.
type YearlyCadence struct{}

func (YearlyCadence) Next(after, anchor core.Date) core.Date {
	if anchor.After(after.Time) {
		return anchor
	}
	candidate := clampedDate(after.Year(), anchor.Month(), anchor.Day())
	if !candidate.After(after.Time) {
		candidate = clampedDate(after.Year()+1, anchor.Month(), anchor.Day())
	}
	return candidate
}

func clampedDate(year, month, day int) core.Date {
	if last := core.DaysInMonth(year, time.Month(month)); day > last {
		day = last
	}
	return core.NewDate(year, month, day)
}

var (
	cadenceMu sync.RWMutex
	cadences  = map[core.Frequency]Cadence{
		core.Daily:   DailyCadence{},
		core.Weekly:  WeeklyCadence{},
		core.Monthly: MonthlyCadence{},
		core.Yearly:  YearlyCadence{},
	}
)

// CadenceFor returns the strategy registered for frequency.
func CadenceFor(frequency core.Frequency) (Cadence, error) {
	cadenceMu.RLock()
	defer cadenceMu.RUnlock()

	c, ok := cadences[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: unknown frequency %q", core.ErrInvalidInput, frequency)
	}
	return c, nil
}

// RegisterCadence adds or replaces the strategy for frequency.
func RegisterCadence(frequency core.Frequency, c Cadence) {
	cadenceMu.Lock()
	defer cadenceMu.Unlock()
	cadences[frequency] = c
}

// FirstOnOrAfter returns the first occurrence on or after day.
func FirstOnOrAfter(c Cadence, day, anchor core.Date) core.Date {
	return c.Next(day.AddDays(-1), anchor)
}
