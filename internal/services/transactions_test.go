package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ports/memory"
)

func TestRecordAndDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedAccount(t, store, "acc", "EUR", "100")
	refresher := &fakeRefresher{}
	pub := &fakePublisher{}
	svc := NewTransactionService(store, refresher, pub)

	tests := []struct {
		name        string
		in          NewTransaction
		wantBalance string
	}{
		{name: "expense", in: NewTransaction{Type: core.Expense, AccountID: "acc", Amount: decimal.RequireFromString("30.10"), CategoryID: "food"}, wantBalance: "69.9"},
		{name: "income", in: NewTransaction{Type: core.Income, AccountID: "acc", Amount: decimal.RequireFromString("1000")}, wantBalance: "1069.9"},
	}

	var recorded []core.Transaction
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := svc.Record(ctx, tt.in)
			if err != nil {
				t.Fatalf("Record: %v", err)
			}
			if tx.Currency != "EUR" {
				t.Errorf("currency = %q, want account currency EUR", tx.Currency)
			}
			recorded = append(recorded, tx)
			account, _ := store.GetAccount(ctx, "acc")
			if !account.Balance.Equal(decimal.RequireFromString(tt.wantBalance)) {
				t.Errorf("balance = %s, want %s", account.Balance, tt.wantBalance)
			}
		})
	}

	if err := svc.Delete(ctx, recorded[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	account, _ := store.GetAccount(ctx, "acc")
	if !account.Balance.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("balance after delete = %s, want 1100", account.Balance)
	}
	if err := svc.Delete(ctx, recorded[0].ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
	if len(refresher.ids) != 3 || len(pub.events) != 3 {
		t.Errorf("refreshes=%d events=%d, want 3/3", len(refresher.ids), len(pub.events))
	}
}

func TestDeleteTransferReversesBothLegs(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedAccount(t, store, "eur", "EUR", "90")
	seedAccount(t, store, "jpy", "JPY", "1612")
	svc := NewTransactionService(store, nil, nil)

	transfer := core.Transaction{
		ID: "t1", Type: core.Transfer, AccountID: "eur", TargetAccountID: "jpy",
		Amount: decimal.NewFromInt(10), TargetAmount: decimal.NewFromInt(1612), Currency: "EUR",
		OccurredAt: time.Now(),
	}
	if err := store.InsertTransaction(ctx, transfer); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}

	if err := svc.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	eur, _ := store.GetAccount(ctx, "eur")
	jpy, _ := store.GetAccount(ctx, "jpy")
	if !eur.Balance.Equal(decimal.NewFromInt(100)) || !jpy.Balance.IsZero() {
		t.Errorf("balances = %s/%s, want 100/0", eur.Balance, jpy.Balance)
	}
}

func TestRecordRejects(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedAccount(t, store, "acc", "EUR", "0")
	svc := NewTransactionService(store, nil, nil)

	tests := []struct {
		name    string
		in      NewTransaction
		wantErr error
	}{
		{name: "transfer", in: NewTransaction{Type: core.Transfer, AccountID: "acc", Amount: decimal.NewFromInt(1)}, wantErr: core.ErrInvalidInput},
		{name: "unknown account", in: NewTransaction{Type: core.Expense, AccountID: "nope", Amount: decimal.NewFromInt(1)}, wantErr: core.ErrNotFound},
		{name: "negative amount", in: NewTransaction{Type: core.Expense, AccountID: "acc", Amount: decimal.NewFromInt(-1)}, wantErr: core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Record(ctx, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	store.FailNextWrite(errors.New("disk full"))
	if _, err := svc.Record(ctx, NewTransaction{Type: core.Expense, AccountID: "acc", Amount: decimal.NewFromInt(5)}); err == nil {
		t.Fatal("expected failure")
	}
	account, _ := store.GetAccount(ctx, "acc")
	if !account.Balance.IsZero() {
		t.Errorf("balance = %s after failed record, want 0", account.Balance)
	}
}
