package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

type NewTransaction struct {
	Type       core.TransactionType
	AccountID  string
	Amount     decimal.Decimal
	CategoryID string
	Note       string
	OccurredAt time.Time
}

// TransactionService records income and expenses together with the
// balance change they cause. Transfers go through the account ledger.
type TransactionService struct {
	store     Store
	refresher AccountRefresher
	events    ports.Publisher
	now       func() time.Time
	newID     func() string
}

func NewTransactionService(store Store, refresher AccountRefresher, events ports.Publisher) *TransactionService {
	if events == nil {
		events = ports.NopPublisher{}
	}
	return &TransactionService{
		store:     store,
		refresher: refresher,
		events:    events,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Record saves the transaction in the account's currency and applies its
// balance change in the same unit of work.
func (s *TransactionService) Record(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	if in.Type == core.Transfer {
		return core.Transaction{}, fmt.Errorf("%w: transfers are recorded by the account ledger", core.ErrInvalidInput)
	}
	at := in.OccurredAt
	if at.IsZero() {
		at = s.now()
	}

	var created core.Transaction
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		account, err := tx.GetAccount(ctx, in.AccountID)
		if err != nil {
			return err
		}
		created = core.Transaction{
			ID:         s.newID(),
			Type:       in.Type,
			AccountID:  account.ID,
			Amount:     in.Amount,
			Currency:   account.Currency,
			CategoryID: in.CategoryID,
			Note:       in.Note,
			OccurredAt: at.UTC(),
		}
		if err := created.Validate(); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, created); err != nil {
			return err
		}
		account.Balance = account.Balance.Add(created.SourceDelta())
		account.UpdatedAt = s.now().UTC()
		return tx.UpdateAccount(ctx, account)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}

	s.afterCommit(ctx, core.EventTransactionCreated, created, created.AccountID)
	slog.InfoContext(ctx, "Transaction recorded",
		"id", created.ID,
		"type", created.Type,
		"amount", created.Amount.String(),
		"currency", created.Currency)
	return created, nil
}

// Delete removes a transaction and reverses its effect on every account
// that still exists.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	var removed core.Transaction
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		t, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		removed = t

		reversals := map[string]decimal.Decimal{t.AccountID: t.SourceDelta().Neg()}
		if t.Type == core.Transfer {
			reversals[t.AccountID] = t.Amount
			reversals[t.TargetAccountID] = t.TargetDelta().Neg()
		}
		now := s.now().UTC()
		for accountID, delta := range reversals {
			account, err := tx.GetAccount(ctx, accountID)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			account.Balance = account.Balance.Add(delta)
			account.UpdatedAt = now
			if err := tx.UpdateAccount(ctx, account); err != nil {
				return err
			}
		}
		return tx.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	accounts := []string{removed.AccountID}
	if removed.TargetAccountID != "" {
		accounts = append(accounts, removed.TargetAccountID)
	}
	s.afterCommit(ctx, core.EventTransactionDeleted, removed, accounts...)
	return nil
}

// List returns the transactions that occurred in [from, to).
func (s *TransactionService) List(ctx context.Context, from, to time.Time) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, from, to)
}

func (s *TransactionService) afterCommit(ctx context.Context, kind core.EventType, t core.Transaction, accountIDs ...string) {
	if s.refresher != nil {
		for _, id := range accountIDs {
			if err := s.refresher.Refresh(ctx, id); err != nil && !errors.Is(err, core.ErrNotFound) {
				slog.WarnContext(ctx, "Failed to refresh account", "account_id", id, "error", err)
			}
		}
	}
	err := s.events.Publish(ctx, core.Event{
		Type:       kind,
		EntityID:   t.ID,
		AccountIDs: accountIDs,
		Amount:     t.Amount.String(),
		Currency:   t.Currency,
		OccurredAt: t.OccurredAt,
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish transaction event", "id", t.ID, "error", err)
	}
}
