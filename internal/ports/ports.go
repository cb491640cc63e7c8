// Package ports declares the storage capabilities the ledgers and services
// depend on. Implementations live in internal/storage (SQLite) and
// internal/ports/memory.
package ports

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
		GetAccount(ctx context.Context, id string) (core.Account, error)
		InsertAccount(ctx context.Context, a core.Account) error
		UpdateAccount(ctx context.Context, a core.Account) error
		DeleteAccount(ctx context.Context, id string) error
	}

	CreditCardStore interface {
		ListCreditCards(ctx context.Context) ([]core.CreditCard, error)
		GetCreditCard(ctx context.Context, id string) (core.CreditCard, error)
		InsertCreditCard(ctx context.Context, c core.CreditCard) error
		UpdateCreditCard(ctx context.Context, c core.CreditCard) error
		DeleteCreditCard(ctx context.Context, id string) error
	}

	TransactionStore interface {
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		InsertTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
		// ListTransactions returns transactions with from <= OccurredAt < to.
		ListTransactions(ctx context.Context, from, to time.Time) ([]core.Transaction, error)
		// ListTransactionTimes returns the OccurredAt of every transaction.
		ListTransactionTimes(ctx context.Context) ([]time.Time, error)
		// SumExpenses sums expense amounts in [from, to). An empty category
		// sums every category.
		SumExpenses(ctx context.Context, categoryID string, from, to time.Time) (core.MultiCurrencyAmount, error)
	}

	RecurringStore interface {
		ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error)
		GetRecurring(ctx context.Context, id string) (core.RecurringTransaction, error)
		InsertRecurring(ctx context.Context, r core.RecurringTransaction) error
		UpdateRecurring(ctx context.Context, r core.RecurringTransaction) error
		DeleteRecurring(ctx context.Context, id string) error
		// AdvanceRecurring moves NextExecuteAt from expectedNext to next and
		// stamps LastExecutedAt. It returns core.ErrConflict when the stored
		// NextExecuteAt no longer equals expectedNext.
		AdvanceRecurring(ctx context.Context, id string, expectedNext, next, last time.Time) error
	}

	BudgetStore interface {
		ListBudgets(ctx context.Context) ([]core.Budget, error)
		GetBudget(ctx context.Context, id string) (core.Budget, error)
		InsertBudget(ctx context.Context, b core.Budget) error
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, id string) error
	}

	RateStore interface {
		GetRate(ctx context.Context, base, quote string) (core.ExchangeRate, error)
		PutRate(ctx context.Context, r core.ExchangeRate) error
	}

	PreferenceStore interface {
		// GetPreference returns core.ErrNotFound for unknown keys.
		GetPreference(ctx context.Context, key string) (string, error)
		SetPreference(ctx context.Context, key, value string) error
	}

	// Tx is the view handed to a unit of work. Every write made through it
	// is discarded if the unit of work returns an error.
	Tx interface {
		AccountStore
		CreditCardStore
		TransactionStore
		RecurringStore
		BudgetStore
	}

	Transactor interface {
		InTx(ctx context.Context, fn func(tx Tx) error) error
	}

	Store interface {
		Tx
		Transactor
		RateStore
		PreferenceStore
		Close() error
	}
)

// Publisher announces committed changes. Failures never undo the change.
type Publisher interface {
	Publish(ctx context.Context, e core.Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, core.Event) error { return nil }
