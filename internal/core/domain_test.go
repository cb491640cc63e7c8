package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestAccountValidate(t *testing.T) {
	good := Account{ID: "a1", Name: "Wallet", Type: AccountCash, Currency: "EUR"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Account{
		{ID: "", Name: "Wallet", Type: AccountCash, Currency: "EUR"},
		{ID: "a1", Name: "   ", Type: AccountCash, Currency: "EUR"},
		{ID: "a1", Name: "Wallet", Type: "piggy", Currency: "EUR"},
		{ID: "a1", Name: "Wallet", Type: AccountCash, Currency: "EURO"},
	}
	for i, a := range bads {
		if err := a.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestCreditCardValidate(t *testing.T) {
	card := CreditCard{
		ID: "c1", Name: "Visa", Currency: "USD",
		CreditLimit: decimal.NewFromInt(1000), UsedAmount: decimal.NewFromInt(200),
		BillDay: 5, RepayDay: 25, Enabled: true,
	}
	if err := card.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	over := card
	over.UsedAmount = decimal.NewFromInt(1200)
	if err := over.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	badDay := card
	badDay.RepayDay = 31
	if err := badDay.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if got := card.Available(); !got.Equal(decimal.NewFromInt(800)) {
		t.Errorf("Available() = %s, want 800", got)
	}
	if got := card.Utilization(); got != 20 {
		t.Errorf("Utilization() = %v, want 20", got)
	}
}

func TestCreditCardNextRepayDate(t *testing.T) {
	card := CreditCard{RepayDay: 10}
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 11, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := card.NextRepayDate(tt.now); !got.Equal(tt.want) {
			t.Errorf("NextRepayDate(%v) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	good := Transaction{ID: "t1", Type: Expense, AccountID: "a1", Amount: decimal.NewFromInt(5), Currency: "EUR", OccurredAt: now}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	noTarget := good
	noTarget.Type = Transfer
	if err := noTarget.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for transfer without target, got %v", err)
	}

	self := noTarget
	self.TargetAccountID = "a1"
	if err := self.Validate(); !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}

	zero := good
	zero.Amount = decimal.Zero
	if err := zero.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransactionDeltas(t *testing.T) {
	amount := decimal.NewFromInt(10)
	if got := (Transaction{Type: Expense, Amount: amount}).SourceDelta(); !got.Equal(amount.Neg()) {
		t.Errorf("expense delta = %s", got)
	}
	if got := (Transaction{Type: Income, Amount: amount}).SourceDelta(); !got.Equal(amount) {
		t.Errorf("income delta = %s", got)
	}
	fx := Transaction{Type: Transfer, Amount: amount, TargetAmount: decimal.NewFromInt(72)}
	if got := fx.TargetDelta(); !got.Equal(decimal.NewFromInt(72)) {
		t.Errorf("target delta = %s", got)
	}
}

func TestRecurringTransactionIsDue(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	base := RecurringTransaction{
		Enabled:       true,
		NextExecuteAt: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name   string
		mutate func(*RecurringTransaction)
		want   bool
	}{
		{"due today", func(*RecurringTransaction) {}, true},
		{"disabled never fires", func(r *RecurringTransaction) { r.Enabled = false }, false},
		{"next in future", func(r *RecurringTransaction) { r.NextExecuteAt = now.Add(time.Hour) }, false},
		{"never scheduled", func(r *RecurringTransaction) { r.NextExecuteAt = time.Time{} }, false},
		{"ended", func(r *RecurringTransaction) { r.EndDate = NewDate(2024, 1, 14) }, false},
		{"ends today", func(r *RecurringTransaction) { r.EndDate = NewDate(2024, 1, 15) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			if got := r.IsDue(now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBudgetRangeAndUsage(t *testing.T) {
	monthly := Budget{ID: "b1", Period: MonthlyBudget, Currency: "EUR", Amount: decimal.NewFromInt(200), Year: 2024, Month: 12}
	if err := monthly.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	from, to := monthly.Range(time.UTC)
	if !from.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Range() = %v, %v", from, to)
	}
	if !monthly.Covers(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)) {
		t.Error("expected December 31 to be covered")
	}
	if monthly.Covers(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected January 1 not to be covered")
	}

	usage := BudgetUsage{Budget: monthly, Spent: decimal.NewFromInt(170)}
	if got := usage.Percentage(); got != 85 {
		t.Errorf("Percentage() = %v, want 85", got)
	}

	noMonth := monthly
	noMonth.Month = 0
	if err := noMonth.Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("expected ErrInvalidMonth, got %v", err)
	}
}
