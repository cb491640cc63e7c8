package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "fintrack.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAccountRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	want := core.Account{
		ID:        "acc-1",
		Name:      "Wallet",
		Type:      core.AccountCash,
		Currency:  "EUR",
		Balance:   decimal.RequireFromString("12.34"),
		IsDefault: true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := repo.InsertAccount(ctx, want); err != nil {
		t.Fatalf("InsertAccount: %v", err)
	}

	got, err := repo.GetAccount(ctx, "acc-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Name != want.Name || got.Type != want.Type || !got.Balance.Equal(want.Balance) || !got.IsDefault {
		t.Errorf("GetAccount = %+v, want %+v", got, want)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}

	if _, err := repo.GetAccount(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetAccount(missing) error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteAccount(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteAccount(missing) error = %v, want ErrNotFound", err)
	}
}

func TestInTxRollback(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now()

	if err := repo.InsertAccount(ctx, core.Account{ID: "a", Name: "A", Type: core.AccountDebit, Currency: "EUR",
		Balance: decimal.NewFromInt(100), CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("InsertAccount: %v", err)
	}

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(tx ports.Tx) error {
		a, err := tx.GetAccount(ctx, "a")
		if err != nil {
			return err
		}
		a.Balance = decimal.Zero
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	a, err := repo.GetAccount(ctx, "a")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !a.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance = %s after rollback, want 100", a.Balance)
	}
}

func TestAdvanceRecurring(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	next := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	r := core.RecurringTransaction{
		ID:            "r1",
		AccountID:     "a",
		Type:          core.Expense,
		Amount:        decimal.NewFromInt(9),
		Frequency:     core.Monthly,
		StartDate:     core.NewDate(2024, 1, 31),
		NextExecuteAt: next,
		Enabled:       true,
	}
	if err := repo.InsertRecurring(ctx, r); err != nil {
		t.Fatalf("InsertRecurring: %v", err)
	}

	following := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if err := repo.AdvanceRecurring(ctx, "r1", next, following, next); err != nil {
		t.Fatalf("first advance: %v", err)
	}
	if err := repo.AdvanceRecurring(ctx, "r1", next, following, next); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("second advance error = %v, want ErrConflict", err)
	}
	if err := repo.AdvanceRecurring(ctx, "nope", next, following, next); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown id error = %v, want ErrNotFound", err)
	}

	got, err := repo.GetRecurring(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRecurring: %v", err)
	}
	if !got.NextExecuteAt.Equal(following) || !got.LastExecutedAt.Equal(next) {
		t.Errorf("next=%v last=%v", got.NextExecuteAt, got.LastExecutedAt)
	}
	if got.StartDate.String() != "2024-01-31" || !got.EndDate.IsZero() {
		t.Errorf("dates = %q/%q", got.StartDate, got.EndDate)
	}
}

func TestTransactionQueries(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	day := func(d int) time.Time { return time.Date(2024, 5, d, 12, 0, 0, 0, time.UTC) }

	txs := []core.Transaction{
		{ID: "t1", Type: core.Expense, AccountID: "a", Amount: decimal.RequireFromString("10.10"), Currency: "EUR", CategoryID: "food", OccurredAt: day(1)},
		{ID: "t2", Type: core.Expense, AccountID: "a", Amount: decimal.RequireFromString("5"), Currency: "USD", CategoryID: "food", OccurredAt: day(2)},
		{ID: "t3", Type: core.Expense, AccountID: "a", Amount: decimal.RequireFromString("7"), Currency: "EUR", CategoryID: "rent", OccurredAt: day(3)},
		{ID: "t4", Type: core.Income, AccountID: "a", Amount: decimal.RequireFromString("100"), Currency: "EUR", OccurredAt: day(4)},
		{ID: "t5", Type: core.Expense, AccountID: "a", Amount: decimal.RequireFromString("1"), Currency: "EUR", CategoryID: "food", OccurredAt: day(20)},
	}
	for _, tx := range txs {
		if err := repo.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("InsertTransaction(%s): %v", tx.ID, err)
		}
	}

	tests := []struct {
		name     string
		category string
		wantEUR  string
		wantUSD  string
	}{
		{name: "food", category: "food", wantEUR: "10.1", wantUSD: "5"},
		{name: "all categories", category: "", wantEUR: "17.1", wantUSD: "5"},
		{name: "unknown", category: "travel", wantEUR: "0", wantUSD: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := repo.SumExpenses(ctx, tt.category, day(1), day(10))
			if err != nil {
				t.Fatalf("SumExpenses: %v", err)
			}
			if !sum.Get("EUR").Equal(decimal.RequireFromString(tt.wantEUR)) {
				t.Errorf("EUR = %s, want %s", sum.Get("EUR"), tt.wantEUR)
			}
			if !sum.Get("USD").Equal(decimal.RequireFromString(tt.wantUSD)) {
				t.Errorf("USD = %s, want %s", sum.Get("USD"), tt.wantUSD)
			}
		})
	}

	list, err := repo.ListTransactions(ctx, day(2), day(4))
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 2 || list[0].ID != "t2" || list[1].ID != "t3" {
		t.Errorf("ListTransactions = %v, want [t2 t3]", list)
	}

	times, err := repo.ListTransactionTimes(ctx)
	if err != nil {
		t.Fatalf("ListTransactionTimes: %v", err)
	}
	if len(times) != len(txs) {
		t.Errorf("got %d times, want %d", len(times), len(txs))
	}
}

func TestRatesAndPreferences(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.GetRate(ctx, "EUR", "USD"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetRate error = %v, want ErrNotFound", err)
	}
	for _, r := range []string{"1.08", "1.10"} {
		if err := repo.PutRate(ctx, core.ExchangeRate{Base: "EUR", Quote: "USD", Rate: decimal.RequireFromString(r), UpdatedAt: time.Now()}); err != nil {
			t.Fatalf("PutRate: %v", err)
		}
	}
	got, err := repo.GetRate(ctx, "EUR", "USD")
	if err != nil {
		t.Fatalf("GetRate: %v", err)
	}
	if !got.Rate.Equal(decimal.RequireFromString("1.10")) {
		t.Errorf("rate = %s, want 1.10", got.Rate)
	}

	if _, err := repo.GetPreference(ctx, "settings"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetPreference error = %v, want ErrNotFound", err)
	}
	if err := repo.SetPreference(ctx, "settings", `{"language":"ja"}`); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	if v, _ := repo.GetPreference(ctx, "settings"); v != `{"language":"ja"}` {
		t.Errorf("preference = %q", v)
	}
}
