package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// Store is the storage the services write through.
type Store interface {
	ports.Tx
	ports.Transactor
}

// AccountRefresher reloads an account into the in-memory ledger after a
// service changed its balance.
type AccountRefresher interface {
	Refresh(ctx context.Context, id string) error
}

type NewRecurring struct {
	AccountID  string
	Type       core.TransactionType
	Amount     decimal.Decimal
	CategoryID string
	Note       string
	Frequency  core.Frequency
	StartDate  core.Date
	EndDate    core.Date
}

// RecurringService manages recurring rules.
type RecurringService struct {
	store Store
	now   func() time.Time
	newID func() string
}

func NewRecurringService(store Store) *RecurringService {
	return &RecurringService{store: store, now: time.Now, newID: uuid.NewString}
}

func (s *RecurringService) List(ctx context.Context) ([]core.RecurringTransaction, error) {
	return s.store.ListRecurring(ctx)
}

func (s *RecurringService) Get(ctx context.Context, id string) (core.RecurringTransaction, error) {
	return s.store.GetRecurring(ctx, id)
}

// Create stores an enabled rule whose first occurrence is its start date.
func (s *RecurringService) Create(ctx context.Context, in NewRecurring) (core.RecurringTransaction, error) {
	r := core.RecurringTransaction{
		ID:            s.newID(),
		AccountID:     in.AccountID,
		Type:          in.Type,
		Amount:        in.Amount,
		CategoryID:    in.CategoryID,
		Note:          in.Note,
		Frequency:     in.Frequency,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		NextExecuteAt: in.StartDate.Time,
		Enabled:       true,
	}
	if err := r.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	if _, err := CadenceFor(r.Frequency); err != nil {
		return core.RecurringTransaction{}, err
	}

	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		if _, err := tx.GetAccount(ctx, r.AccountID); err != nil {
			return err
		}
		return tx.InsertRecurring(ctx, r)
	})
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("create recurring transaction: %w", err)
	}

	slog.InfoContext(ctx, "Recurring transaction created",
		"id", r.ID,
		"frequency", r.Frequency,
		"next", r.NextExecuteAt.Format(time.DateOnly))
	return r, nil
}

// Update rewrites a rule. Changing the frequency or start date reschedules
// it to the first occurrence on or after today.
func (s *RecurringService) Update(ctx context.Context, in core.RecurringTransaction) (core.RecurringTransaction, error) {
	var updated core.RecurringTransaction
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		cur, err := tx.GetRecurring(ctx, in.ID)
		if err != nil {
			return err
		}
		if in.AccountID != cur.AccountID {
			if _, err := tx.GetAccount(ctx, in.AccountID); err != nil {
				return err
			}
		}

		reschedule := in.Frequency != cur.Frequency || !in.StartDate.Equal(cur.StartDate.Time)
		cur.AccountID = in.AccountID
		cur.Type = in.Type
		cur.Amount = in.Amount
		cur.CategoryID = in.CategoryID
		cur.Note = in.Note
		cur.Frequency = in.Frequency
		cur.StartDate = in.StartDate
		cur.EndDate = in.EndDate
		if err := cur.Validate(); err != nil {
			return err
		}
		if reschedule {
			next, err := s.firstFrom(cur, core.DateOf(s.now()))
			if err != nil {
				return err
			}
			cur.NextExecuteAt = next.Time
		}
		updated = cur
		return tx.UpdateRecurring(ctx, cur)
	})
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("update recurring transaction: %w", err)
	}
	return updated, nil
}

func (s *RecurringService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteRecurring(ctx, id); err != nil {
		return fmt.Errorf("delete recurring transaction: %w", err)
	}
	return nil
}

// SetEnabled toggles a rule. A rule re-enabled after its next date passed
// moves to the first occurrence on or after today, so missed periods are
// not back-filled.
func (s *RecurringService) SetEnabled(ctx context.Context, id string, enabled bool) (core.RecurringTransaction, error) {
	var updated core.RecurringTransaction
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		r, err := tx.GetRecurring(ctx, id)
		if err != nil {
			return err
		}
		r.Enabled = enabled
		if enabled {
			today := core.DateOf(s.now())
			if r.EndsBefore(today.Time) {
				return fmt.Errorf("%w: rule ended on %s", core.ErrInvalidInput, r.EndDate)
			}
			if r.NextExecuteAt.IsZero() || r.NextExecuteAt.Before(today.Time) {
				next, err := s.firstFrom(r, today)
				if err != nil {
					return err
				}
				r.NextExecuteAt = next.Time
			}
		}
		updated = r
		return tx.UpdateRecurring(ctx, r)
	})
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("set recurring transaction enabled: %w", err)
	}
	return updated, nil
}

func (s *RecurringService) firstFrom(r core.RecurringTransaction, day core.Date) (core.Date, error) {
	c, err := CadenceFor(r.Frequency)
	if err != nil {
		return core.Date{}, err
	}
	return FirstOnOrAfter(c, day, r.StartDate), nil
}

// RecurringProcessor materializes transactions from due rules.
type RecurringProcessor struct {
	store     Store
	refresher AccountRefresher
	events    ports.Publisher
	newID     func() string
}

// NewRecurringProcessor creates a processor. refresher and events may be nil.
func NewRecurringProcessor(store Store, refresher AccountRefresher, events ports.Publisher) *RecurringProcessor {
	if events == nil {
		events = ports.NopPublisher{}
	}
	return &RecurringProcessor{store: store, refresher: refresher, events: events, newID: uuid.NewString}
}

// ProcessDue fires every due rule once and returns how many transactions
// were created. A rule already advanced by a concurrent run is skipped.
// Per-rule failures do not stop the batch and are returned together.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	rules, err := p.store.ListRecurring(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recurring transactions: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"total", len(rules),
		"processing_date", now.Format(time.DateOnly))

	var (
		processed int
		result    *multierror.Error
	)
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if !r.NextExecuteAt.IsZero() && r.EndsBefore(r.NextExecuteAt) {
			if err := p.retire(ctx, r); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}
		if !r.IsDue(now) {
			continue
		}

		tx, err := p.fire(ctx, r, now)
		if errors.Is(err, core.ErrConflict) {
			slog.InfoContext(ctx, "Recurring transaction already processed", "recurring_id", r.ID)
			continue
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring transaction", "recurring_id", r.ID, "error", err)
			result = multierror.Append(result, fmt.Errorf("recurring %s: %w", r.ID, err))
			continue
		}

		processed++
		p.afterCommit(ctx, tx)
		slog.InfoContext(ctx, "Created transaction from recurring rule",
			"recurring_id", r.ID,
			"transaction_id", tx.ID,
			"amount", tx.Amount.String(),
			"frequency", r.Frequency)
	}

	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"processed", processed,
		"total_checked", len(rules))

	return processed, result.ErrorOrNil()
}

// fire advances the rule and writes the transaction and balance change in
// one unit of work.
func (p *RecurringProcessor) fire(ctx context.Context, r core.RecurringTransaction, now time.Time) (core.Transaction, error) {
	c, err := CadenceFor(r.Frequency)
	if err != nil {
		return core.Transaction{}, err
	}
	next := c.Next(core.DateOf(now), r.StartDate)

	var created core.Transaction
	err = p.store.InTx(ctx, func(tx ports.Tx) error {
		if err := tx.AdvanceRecurring(ctx, r.ID, r.NextExecuteAt, next.Time, now.UTC()); err != nil {
			return err
		}
		if r.EndsBefore(next.Time) {
			cur, err := tx.GetRecurring(ctx, r.ID)
			if err != nil {
				return err
			}
			cur.Enabled = false
			if err := tx.UpdateRecurring(ctx, cur); err != nil {
				return err
			}
		}

		account, err := tx.GetAccount(ctx, r.AccountID)
		if err != nil {
			return err
		}
		created = r.Materialize(p.newID(), account.Currency, now.UTC())
		if err := created.Validate(); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, created); err != nil {
			return err
		}
		account.Balance = account.Balance.Add(created.SourceDelta())
		account.UpdatedAt = now.UTC()
		return tx.UpdateAccount(ctx, account)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return created, nil
}

func (p *RecurringProcessor) retire(ctx context.Context, r core.RecurringTransaction) error {
	err := p.store.InTx(ctx, func(tx ports.Tx) error {
		cur, err := tx.GetRecurring(ctx, r.ID)
		if err != nil {
			return err
		}
		cur.Enabled = false
		return tx.UpdateRecurring(ctx, cur)
	})
	if err != nil {
		return fmt.Errorf("disable ended recurring %s: %w", r.ID, err)
	}
	slog.InfoContext(ctx, "Recurring transaction ended", "recurring_id", r.ID, "end_date", r.EndDate.String())
	return nil
}

func (p *RecurringProcessor) afterCommit(ctx context.Context, tx core.Transaction) {
	if p.refresher != nil {
		if err := p.refresher.Refresh(ctx, tx.AccountID); err != nil {
			slog.WarnContext(ctx, "Failed to refresh account", "account_id", tx.AccountID, "error", err)
		}
	}
	err := p.events.Publish(ctx, core.Event{
		Type:       core.EventTransactionCreated,
		EntityID:   tx.ID,
		AccountIDs: []string{tx.AccountID},
		Amount:     tx.Amount.String(),
		Currency:   tx.Currency,
		OccurredAt: tx.OccurredAt,
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish transaction event", "id", tx.ID, "error", err)
	}
}
