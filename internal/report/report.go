// Package report renders a plain-text snapshot of the user's finances.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"fintrack/internal/app"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/services"
)

// DueWindowDays is how far ahead card repayments are listed.
const DueWindowDays = 7

type Report struct {
	GeneratedAt time.Time
	Locale      string
	Accounts    []core.Account
	NetWorth    core.MultiCurrencyAmount
	Debt        core.MultiCurrencyAmount
	DueCards    []core.CreditCard
	Streak      services.StreakStats
	Alerts      []core.BudgetAlert
}

// Build gathers the report from a loaded app.
func Build(ctx context.Context, a *app.App, now time.Time) (Report, error) {
	streak, err := a.Streaks.Stats(ctx, now)
	if err != nil {
		return Report{}, fmt.Errorf("streak: %w", err)
	}
	alerts, err := a.Alerts.Refresh(ctx, now)
	if err != nil {
		return Report{}, fmt.Errorf("budget alerts: %w", err)
	}

	accounts := a.Accounts.Accounts()
	cards := a.Cards.Cards()
	return Report{
		GeneratedAt: now,
		Locale:      a.Settings.Locale().String(),
		Accounts:    accounts,
		NetWorth:    ledger.Balances(accounts),
		Debt:        ledger.Debt(cards),
		DueCards:    ledger.DueWithin(cards, now, DueWindowDays),
		Streak:      streak,
		Alerts:      alerts,
	}, nil
}

// Write renders r as aligned text.
func Write(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Report\t%s\t(locale %s)\n", r.GeneratedAt.Format("2006-01-02 15:04"), r.Locale)

	fmt.Fprintln(tw, "\nAccounts")
	for _, acc := range r.Accounts {
		marker := ""
		if acc.IsDefault {
			marker = "*"
		}
		fmt.Fprintf(tw, "  %s%s\t%s\t%s\n", acc.Name, marker, acc.Type, Money(acc.Balance, acc.Currency))
	}
	writeTotals(tw, "Net worth", r.NetWorth)
	writeTotals(tw, "Card debt", r.Debt)

	if len(r.DueCards) > 0 {
		fmt.Fprintln(tw, "\nRepayments due")
		for _, c := range r.DueCards {
			due := c.NextRepayDate(r.GeneratedAt)
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", c.Name, Money(c.UsedAmount, c.Currency),
				humanize.RelTime(due, r.GeneratedAt, "ago", "from now"))
		}
	}

	fmt.Fprintln(tw, "\nStreak")
	fmt.Fprintf(tw, "  current\t%s\n", days(r.Streak.Current))
	fmt.Fprintf(tw, "  longest\t%s\n", days(r.Streak.Longest))
	if !r.Streak.LastActive.IsZero() {
		fmt.Fprintf(tw, "  last active\t%s\n", r.Streak.LastActive)
	}

	fmt.Fprintln(tw, "\nBudget alerts")
	if len(r.Alerts) == 0 {
		fmt.Fprintln(tw, "  none")
	}
	for _, a := range r.Alerts {
		fmt.Fprintf(tw, "  %s\t%s\t%s of %s\t%s%%\n", a.Level, a.CategoryID,
			Money(a.Spent, a.Currency), Money(a.Limit, a.Currency),
			humanize.FormatFloat("#,###.#", a.Percentage))
	}

	return tw.Flush()
}

func writeTotals(w io.Writer, label string, m core.MultiCurrencyAmount) {
	if m.IsZero() {
		fmt.Fprintf(w, "%s\t-\n", label)
		return
	}
	for i, code := range m.Currencies() {
		if i == 0 {
			fmt.Fprintf(w, "%s\t%s\n", label, Money(m.Get(code), code))
			continue
		}
		fmt.Fprintf(w, "\t%s\n", Money(m.Get(code), code))
	}
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return humanize.Comma(int64(n)) + " days"
}

// Money formats amount with thousands separators and the currency's minor
// unit digits, e.g. "1,234.50 EUR".
func Money(amount decimal.Decimal, currency string) string {
	places := core.MinorUnits(currency)
	format := "#,###."
	if places > 0 {
		format += strings.Repeat("#", int(places))
	}
	rounded := core.RoundTo(amount, currency)
	return humanize.FormatFloat(format, rounded.InexactFloat64()) + " " + currency
}
