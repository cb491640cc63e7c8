// Package ledger keeps the in-memory account and credit card lists in step
// with storage. Every change is written to storage first; the snapshot is
// replaced only after the unit of work commits.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/state"
)

// AccountStore is the storage an AccountLedger needs.
type AccountStore interface {
	ports.AccountStore
	ports.Transactor
}

// RateSource resolves an exchange rate when a transfer does not carry one.
type RateSource interface {
	Rate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

type NewAccount struct {
	Name     string
	Type     core.AccountType
	Currency string
	Balance  decimal.Decimal
	Icon     string
}

// TransferRequest moves Amount out of From. A zero Rate means "not given".
type TransferRequest struct {
	From   string
	To     string
	Amount decimal.Decimal
	Rate   decimal.Decimal
	Note   string
	At     time.Time
}

type AccountLedger struct {
	store  AccountStore
	rates  RateSource
	events ports.Publisher
	state  *state.Container[[]core.Account]

	// writeMu orders snapshot updates the same way as the commits.
	writeMu sync.Mutex
	now     func() time.Time
	newID   func() string
}

func NewAccountLedger(store AccountStore, rates RateSource, events ports.Publisher) *AccountLedger {
	if events == nil {
		events = ports.NopPublisher{}
	}
	return &AccountLedger{
		store:  store,
		rates:  rates,
		events: events,
		state:  state.New[[]core.Account](nil),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Load replaces the snapshot with the stored accounts.
func (l *AccountLedger) Load(ctx context.Context) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	accounts, err := l.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	l.state.Set(accounts)
	return nil
}

// Accounts returns a copy of the current snapshot.
func (l *AccountLedger) Accounts() []core.Account {
	return slices.Clone(l.state.Get())
}

func (l *AccountLedger) Get(id string) (core.Account, error) {
	for _, a := range l.state.Get() {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
}

// Default returns the default account, if any account exists.
func (l *AccountLedger) Default() (core.Account, bool) {
	for _, a := range l.state.Get() {
		if a.IsDefault {
			return a, true
		}
	}
	return core.Account{}, false
}

// Subscribe calls fn with every new snapshot.
func (l *AccountLedger) Subscribe(fn func([]core.Account)) func() {
	return l.state.Subscribe(fn)
}

func (l *AccountLedger) Create(ctx context.Context, in NewAccount) (core.Account, error) {
	now := l.now().UTC()
	a := core.Account{
		ID:        l.newID(),
		Name:      in.Name,
		Type:      in.Type,
		Currency:  in.Currency,
		Balance:   in.Balance,
		Icon:      in.Icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	err := l.store.InTx(ctx, func(tx ports.Tx) error {
		existing, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		a.IsDefault = len(existing) == 0
		return tx.InsertAccount(ctx, a)
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	l.apply([]core.Account{a}, nil)
	l.publish(ctx, core.Event{Type: core.EventAccountChanged, EntityID: a.ID, AccountIDs: []string{a.ID}})
	slog.InfoContext(ctx, "Account created", "id", a.ID, "currency", a.Currency, "default", a.IsDefault)
	return a, nil
}

// Update rewrites the descriptive fields of an account. Balance and the
// default flag only change through their own operations.
func (l *AccountLedger) Update(ctx context.Context, in core.Account) (core.Account, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var updated core.Account
	err := l.store.InTx(ctx, func(tx ports.Tx) error {
		cur, err := tx.GetAccount(ctx, in.ID)
		if err != nil {
			return err
		}
		cur.Name = in.Name
		cur.Type = in.Type
		cur.Currency = in.Currency
		cur.Icon = in.Icon
		cur.UpdatedAt = l.now().UTC()
		if err := cur.Validate(); err != nil {
			return err
		}
		updated = cur
		return tx.UpdateAccount(ctx, cur)
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("update account: %w", err)
	}

	l.apply([]core.Account{updated}, nil)
	l.publish(ctx, core.Event{Type: core.EventAccountChanged, EntityID: updated.ID, AccountIDs: []string{updated.ID}})
	return updated, nil
}

// Delete removes an account. Deleting the default account promotes the
// first remaining one.
func (l *AccountLedger) Delete(ctx context.Context, id string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var promoted []core.Account
	err := l.store.InTx(ctx, func(tx ports.Tx) error {
		cur, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteAccount(ctx, id); err != nil {
			return err
		}
		if !cur.IsDefault {
			return nil
		}
		rest, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		if len(rest) == 0 {
			return nil
		}
		next := rest[0]
		next.IsDefault = true
		next.UpdatedAt = l.now().UTC()
		promoted = append(promoted, next)
		return tx.UpdateAccount(ctx, next)
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	l.apply(promoted, []string{id})
	l.publish(ctx, core.Event{Type: core.EventAccountChanged, EntityID: id, AccountIDs: []string{id}})
	slog.InfoContext(ctx, "Account deleted", "id", id)
	return nil
}

// SetDefault makes id the only default account.
func (l *AccountLedger) SetDefault(ctx context.Context, id string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var changed []core.Account
	err := l.store.InTx(ctx, func(tx ports.Tx) error {
		if _, err := tx.GetAccount(ctx, id); err != nil {
			return err
		}
		all, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		now := l.now().UTC()
		for _, a := range all {
			want := a.ID == id
			if a.IsDefault == want {
				continue
			}
			a.IsDefault = want
			a.UpdatedAt = now
			if err := tx.UpdateAccount(ctx, a); err != nil {
				return err
			}
			changed = append(changed, a)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set default account: %w", err)
	}

	l.apply(changed, nil)
	return nil
}

// AdjustBalance adds delta to the account balance.
func (l *AccountLedger) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (core.Account, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var updated core.Account
	err := l.store.InTx(ctx, func(tx ports.Tx) error {
		a, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		a.Balance = a.Balance.Add(delta)
		a.UpdatedAt = l.now().UTC()
		updated = a
		return tx.UpdateAccount(ctx, a)
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("adjust balance: %w", err)
	}

	l.apply([]core.Account{updated}, nil)
	l.publish(ctx, core.Event{
		Type:       core.EventBalanceAdjusted,
		EntityID:   id,
		AccountIDs: []string{id},
		Amount:     delta.String(),
		Currency:   updated.Currency,
	})
	return updated, nil
}

// Transfer debits From and credits To in one unit of work and records a
// transfer transaction. Across currencies the credited amount is
// Amount*Rate rounded half-even to the minor unit of To's currency.
func (l *AccountLedger) Transfer(ctx context.Context, req TransferRequest) (core.Transaction, error) {
	if req.From == req.To {
		return core.Transaction{}, core.ErrSameAccount
	}
	if !req.Amount.IsPositive() {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	if req.Rate.IsNegative() {
		return core.Transaction{}, core.ErrInvalidRate
	}

	from, err := l.store.GetAccount(ctx, req.From)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transfer source: %w", err)
	}
	to, err := l.store.GetAccount(ctx, req.To)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transfer destination: %w", err)
	}

	// Resolved before the unit of work; the rate book reads storage too.
	rate, err := l.resolveRate(ctx, from.Currency, to.Currency, req.Rate)
	if err != nil {
		return core.Transaction{}, err
	}
	credit := core.Convert(req.Amount, rate, to.Currency)
	if !credit.IsPositive() {
		return core.Transaction{}, fmt.Errorf("%w: %s %s converts to zero %s", core.ErrInvalidAmount, req.Amount, from.Currency, to.Currency)
	}

	at := req.At
	if at.IsZero() {
		at = l.now()
	}
	record := core.Transaction{
		ID:              l.newID(),
		Type:            core.Transfer,
		AccountID:       from.ID,
		TargetAccountID: to.ID,
		Amount:          req.Amount,
		TargetAmount:    credit,
		Currency:        from.Currency,
		Note:            req.Note,
		OccurredAt:      at.UTC(),
	}
	if err := record.Validate(); err != nil {
		return core.Transaction{}, err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var changed []core.Account
	err = l.store.InTx(ctx, func(tx ports.Tx) error {
		src, err := tx.GetAccount(ctx, from.ID)
		if err != nil {
			return err
		}
		dst, err := tx.GetAccount(ctx, to.ID)
		if err != nil {
			return err
		}
		if src.Currency != from.Currency || dst.Currency != to.Currency {
			return fmt.Errorf("account currency changed during transfer: %w", core.ErrConflict)
		}

		now := l.now().UTC()
		src.Balance = src.Balance.Sub(req.Amount)
		src.UpdatedAt = now
		dst.Balance = dst.Balance.Add(credit)
		dst.UpdatedAt = now

		if err := tx.UpdateAccount(ctx, src); err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, dst); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, record); err != nil {
			return err
		}
		changed = []core.Account{src, dst}
		return nil
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transfer: %w", err)
	}

	l.apply(changed, nil)
	l.publish(ctx, core.Event{
		Type:       core.EventTransferCompleted,
		EntityID:   record.ID,
		AccountIDs: []string{from.ID, to.ID},
		Amount:     req.Amount.String(),
		Currency:   from.Currency,
		OccurredAt: record.OccurredAt,
	})
	slog.InfoContext(ctx, "Transfer completed",
		"id", record.ID,
		"from", from.ID,
		"to", to.ID,
		"amount", req.Amount.String(),
		"credited", credit.String(),
		"rate", rate.String())
	return record, nil
}

func (l *AccountLedger) resolveRate(ctx context.Context, base, quote string, given decimal.Decimal) (decimal.Decimal, error) {
	one := decimal.NewFromInt(1)
	if base == quote {
		if given.IsZero() || given.Equal(one) {
			return one, nil
		}
		return decimal.Zero, fmt.Errorf("%w: same-currency transfer with rate %s", core.ErrInvalidRate, given)
	}
	if given.IsPositive() {
		return given, nil
	}
	if l.rates == nil {
		return decimal.Zero, fmt.Errorf("%s/%s: %w", base, quote, core.ErrRateUnavailable)
	}
	rate, err := l.rates.Rate(ctx, base, quote)
	if err != nil {
		return decimal.Zero, err
	}
	return rate, nil
}

// Refresh reloads one account from storage into the snapshot.
func (l *AccountLedger) Refresh(ctx context.Context, id string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	a, err := l.store.GetAccount(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		l.apply(nil, []string{id})
		return err
	}
	if err != nil {
		return fmt.Errorf("refresh account %s: %w", id, err)
	}
	l.apply([]core.Account{a}, nil)
	return nil
}

// apply merges committed rows into the snapshot. Callers hold writeMu.
func (l *AccountLedger) apply(changed []core.Account, removed []string) {
	l.state.Update(func(cur []core.Account) []core.Account {
		next := make([]core.Account, 0, len(cur)+len(changed))
		for _, a := range cur {
			if slices.Contains(removed, a.ID) || slices.ContainsFunc(changed, func(c core.Account) bool { return c.ID == a.ID }) {
				continue
			}
			next = append(next, a)
		}
		next = append(next, changed...)
		sortAccounts(next)
		return next
	})
}

func (l *AccountLedger) publish(ctx context.Context, e core.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = l.now().UTC()
	}
	if err := l.events.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger event", "type", e.Type, "id", e.EntityID, "error", err)
	}
}

// sortAccounts orders the default account first, then by creation.
func sortAccounts(accounts []core.Account) {
	slices.SortStableFunc(accounts, func(a, b core.Account) int {
		if a.IsDefault != b.IsDefault {
			if a.IsDefault {
				return -1
			}
			return 1
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Balances sums account balances per currency.
func Balances(accounts []core.Account) core.MultiCurrencyAmount {
	sum := core.NewMultiCurrencyAmount()
	for _, a := range accounts {
		sum.Add(a.Currency, a.Balance)
	}
	return sum
}
