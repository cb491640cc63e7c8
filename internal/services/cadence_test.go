package services

import (
	"errors"
	"testing"

	"fintrack/internal/core"
)

func TestCadenceNext(t *testing.T) {
	d := core.NewDate

	tests := []struct {
		name      string
		frequency core.Frequency
		after     core.Date
		anchor    core.Date
		want      core.Date
	}{
		{name: "daily", frequency: core.Daily, after: d(2024, 1, 15), anchor: d(2024, 1, 1), want: d(2024, 1, 16)},
		{name: "daily before anchor", frequency: core.Daily, after: d(2023, 12, 1), anchor: d(2024, 1, 1), want: d(2024, 1, 1)},
		{name: "weekly on anchor weekday", frequency: core.Weekly, after: d(2024, 1, 8), anchor: d(2024, 1, 1), want: d(2024, 1, 15)},
		{name: "weekly mid week", frequency: core.Weekly, after: d(2024, 1, 10), anchor: d(2024, 1, 1), want: d(2024, 1, 15)},
		{name: "monthly later this month", frequency: core.Monthly, after: d(2024, 3, 5), anchor: d(2024, 1, 10), want: d(2024, 3, 10)},
		{name: "monthly next month", frequency: core.Monthly, after: d(2024, 3, 10), anchor: d(2024, 1, 10), want: d(2024, 4, 10)},
		{name: "monthly clamps to february", frequency: core.Monthly, after: d(2024, 1, 31), anchor: d(2024, 1, 31), want: d(2024, 2, 29)},
		{name: "monthly returns to anchor day", frequency: core.Monthly, after: d(2024, 2, 29), anchor: d(2024, 1, 31), want: d(2024, 3, 31)},
		{name: "monthly across year end", frequency: core.Monthly, after: d(2024, 12, 20), anchor: d(2024, 1, 15), want: d(2025, 1, 15)},
		{name: "yearly this year", frequency: core.Yearly, after: d(2024, 2, 1), anchor: d(2020, 6, 1), want: d(2024, 6, 1)},
		{name: "yearly next year", frequency: core.Yearly, after: d(2024, 6, 1), anchor: d(2020, 6, 1), want: d(2025, 6, 1)},
		{name: "yearly leap anchor", frequency: core.Yearly, after: d(2024, 2, 29), anchor: d(2024, 2, 29), want: d(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := CadenceFor(tt.frequency)
			if err != nil {
				t.Fatalf("CadenceFor: %v", err)
			}
			got := c.Next(tt.after, tt.anchor)
			if !got.Equal(tt.want.Time) {
				t.Errorf("Next(%s, %s) = %s, want %s", tt.after, tt.anchor, got, tt.want)
			}
			if !got.After(tt.after.Time) {
				t.Errorf("Next(%s) = %s is not strictly after", tt.after, got)
			}
		})
	}
}

func TestFirstOnOrAfter(t *testing.T) {
	c, _ := CadenceFor(core.Monthly)
	anchor := core.NewDate(2024, 1, 10)

	if got := FirstOnOrAfter(c, core.NewDate(2024, 5, 10), anchor); got.String() != "2024-05-10" {
		t.Errorf("on occurrence day = %s, want 2024-05-10", got)
	}
	if got := FirstOnOrAfter(c, core.NewDate(2024, 5, 11), anchor); got.String() != "2024-06-10" {
		t.Errorf("day after occurrence = %s, want 2024-06-10", got)
	}
}

type everyOtherDay struct{}

func (everyOtherDay) Next(after, _ core.Date) core.Date { return after.AddDays(2) }

func TestRegisterCadence(t *testing.T) {
	const everyOther core.Frequency = "every-other-day"
	if _, err := CadenceFor(everyOther); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}

	RegisterCadence(everyOther, everyOtherDay{})
	t.Cleanup(func() {
		cadenceMu.Lock()
		delete(cadences, everyOther)
		cadenceMu.Unlock()
	})

	c, err := CadenceFor(everyOther)
	if err != nil {
		t.Fatalf("CadenceFor: %v", err)
	}
	if got := c.Next(core.NewDate(2024, 1, 1), core.Date{}); got.String() != "2024-01-03" {
		t.Errorf("Next = %s", got)
	}
}
