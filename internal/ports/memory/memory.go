// Package memory is an in-process implementation of the storage ports.
// Units of work run against a copy of the data set that replaces the live
// one only when the unit succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

type Store struct {
	mu       sync.Mutex
	data     *dataset
	rates    map[string]core.ExchangeRate
	prefs    map[string]string
	failNext error
}

type dataset struct {
	accounts     map[string]core.Account
	cards        map[string]core.CreditCard
	transactions map[string]core.Transaction
	recurring    map[string]core.RecurringTransaction
	budgets      map[string]core.Budget
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		data: &dataset{
			accounts:     map[string]core.Account{},
			cards:        map[string]core.CreditCard{},
			transactions: map[string]core.Transaction{},
			recurring:    map[string]core.RecurringTransaction{},
			budgets:      map[string]core.Budget{},
		},
		rates: map[string]core.ExchangeRate{},
		prefs: map[string]string{},
	}
}

// FailNextWrite makes the next unit of work that writes anything fail with
// err after running, leaving the stored data untouched.
func (s *Store) FailNextWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// InTx implements ports.Transactor.
func (s *Store) InTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := &view{data: s.data.clone()}
	if err := fn(v); err != nil {
		return err
	}
	if v.dirty && s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return fmt.Errorf("commit: %w", err)
	}
	s.data = v.data
	return nil
}

func (s *Store) Close() error { return nil }

func (d *dataset) clone() *dataset {
	return &dataset{
		accounts:     cloneMap(d.accounts),
		cards:        cloneMap(d.cards),
		transactions: cloneMap(d.transactions),
		recurring:    cloneMap(d.recurring),
		budgets:      cloneMap(d.budgets),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
}

func duplicate(kind, id string) error {
	return fmt.Errorf("%s %s already exists: %w", kind, id, core.ErrConflict)
}

// view is the ports.Tx handed to units of work.
type view struct {
	data  *dataset
	dirty bool
}

func (v *view) ListAccounts(context.Context) ([]core.Account, error) {
	out := values(v.data.accounts)
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) GetAccount(_ context.Context, id string) (core.Account, error) {
	a, ok := v.data.accounts[id]
	if !ok {
		return core.Account{}, notFound("account", id)
	}
	return a, nil
}

func (v *view) InsertAccount(_ context.Context, a core.Account) error {
	if _, ok := v.data.accounts[a.ID]; ok {
		return duplicate("account", a.ID)
	}
	v.data.accounts[a.ID] = a
	v.dirty = true
	return nil
}

func (v *view) UpdateAccount(_ context.Context, a core.Account) error {
	if _, ok := v.data.accounts[a.ID]; !ok {
		return notFound("account", a.ID)
	}
	v.data.accounts[a.ID] = a
	v.dirty = true
	return nil
}

func (v *view) DeleteAccount(_ context.Context, id string) error {
	if _, ok := v.data.accounts[id]; !ok {
		return notFound("account", id)
	}
	delete(v.data.accounts, id)
	v.dirty = true
	return nil
}

func (v *view) ListCreditCards(context.Context) ([]core.CreditCard, error) {
	out := values(v.data.cards)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) GetCreditCard(_ context.Context, id string) (core.CreditCard, error) {
	c, ok := v.data.cards[id]
	if !ok {
		return core.CreditCard{}, notFound("credit card", id)
	}
	return c, nil
}

func (v *view) InsertCreditCard(_ context.Context, c core.CreditCard) error {
	if _, ok := v.data.cards[c.ID]; ok {
		return duplicate("credit card", c.ID)
	}
	v.data.cards[c.ID] = c
	v.dirty = true
	return nil
}

func (v *view) UpdateCreditCard(_ context.Context, c core.CreditCard) error {
	if _, ok := v.data.cards[c.ID]; !ok {
		return notFound("credit card", c.ID)
	}
	v.data.cards[c.ID] = c
	v.dirty = true
	return nil
}

func (v *view) DeleteCreditCard(_ context.Context, id string) error {
	if _, ok := v.data.cards[id]; !ok {
		return notFound("credit card", id)
	}
	delete(v.data.cards, id)
	v.dirty = true
	return nil
}

func (v *view) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	t, ok := v.data.transactions[id]
	if !ok {
		return core.Transaction{}, notFound("transaction", id)
	}
	return t, nil
}

func (v *view) InsertTransaction(_ context.Context, t core.Transaction) error {
	if _, ok := v.data.transactions[t.ID]; ok {
		return duplicate("transaction", t.ID)
	}
	v.data.transactions[t.ID] = t
	v.dirty = true
	return nil
}

func (v *view) DeleteTransaction(_ context.Context, id string) error {
	if _, ok := v.data.transactions[id]; !ok {
		return notFound("transaction", id)
	}
	delete(v.data.transactions, id)
	v.dirty = true
	return nil
}

func (v *view) ListTransactions(_ context.Context, from, to time.Time) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range v.data.transactions {
		if !t.OccurredAt.Before(from) && t.OccurredAt.Before(to) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) ListTransactionTimes(context.Context) ([]time.Time, error) {
	out := make([]time.Time, 0, len(v.data.transactions))
	for _, t := range v.data.transactions {
		out = append(out, t.OccurredAt)
	}
	return out, nil
}

func (v *view) SumExpenses(_ context.Context, categoryID string, from, to time.Time) (core.MultiCurrencyAmount, error) {
	sum := core.NewMultiCurrencyAmount()
	for _, t := range v.data.transactions {
		if t.Type != core.Expense || t.OccurredAt.Before(from) || !t.OccurredAt.Before(to) {
			continue
		}
		if categoryID != "" && t.CategoryID != categoryID {
			continue
		}
		sum.Add(t.Currency, t.Amount)
	}
	return sum, nil
}

func (v *view) ListRecurring(context.Context) ([]core.RecurringTransaction, error) {
	out := values(v.data.recurring)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextExecuteAt.Equal(out[j].NextExecuteAt) {
			return out[i].NextExecuteAt.Before(out[j].NextExecuteAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) GetRecurring(_ context.Context, id string) (core.RecurringTransaction, error) {
	r, ok := v.data.recurring[id]
	if !ok {
		return core.RecurringTransaction{}, notFound("recurring transaction", id)
	}
	return r, nil
}

func (v *view) InsertRecurring(_ context.Context, r core.RecurringTransaction) error {
	if _, ok := v.data.recurring[r.ID]; ok {
		return duplicate("recurring transaction", r.ID)
	}
	v.data.recurring[r.ID] = r
	v.dirty = true
	return nil
}

func (v *view) UpdateRecurring(_ context.Context, r core.RecurringTransaction) error {
	if _, ok := v.data.recurring[r.ID]; !ok {
		return notFound("recurring transaction", r.ID)
	}
	v.data.recurring[r.ID] = r
	v.dirty = true
	return nil
}

func (v *view) DeleteRecurring(_ context.Context, id string) error {
	if _, ok := v.data.recurring[id]; !ok {
		return notFound("recurring transaction", id)
	}
	delete(v.data.recurring, id)
	v.dirty = true
	return nil
}

func (v *view) AdvanceRecurring(_ context.Context, id string, expectedNext, next, last time.Time) error {
	r, ok := v.data.recurring[id]
	if !ok {
		return notFound("recurring transaction", id)
	}
	if !r.NextExecuteAt.Equal(expectedNext) {
		return fmt.Errorf("recurring transaction %s already advanced: %w", id, core.ErrConflict)
	}
	r.NextExecuteAt = next
	r.LastExecutedAt = last
	v.data.recurring[id] = r
	v.dirty = true
	return nil
}

func (v *view) ListBudgets(context.Context) ([]core.Budget, error) {
	out := values(v.data.budgets)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		if out[i].Month != out[j].Month {
			return out[i].Month > out[j].Month
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) GetBudget(_ context.Context, id string) (core.Budget, error) {
	b, ok := v.data.budgets[id]
	if !ok {
		return core.Budget{}, notFound("budget", id)
	}
	return b, nil
}

func (v *view) InsertBudget(_ context.Context, b core.Budget) error {
	if _, ok := v.data.budgets[b.ID]; ok {
		return duplicate("budget", b.ID)
	}
	v.data.budgets[b.ID] = b
	v.dirty = true
	return nil
}

func (v *view) UpdateBudget(_ context.Context, b core.Budget) error {
	if _, ok := v.data.budgets[b.ID]; !ok {
		return notFound("budget", b.ID)
	}
	v.data.budgets[b.ID] = b
	v.dirty = true
	return nil
}

func (v *view) DeleteBudget(_ context.Context, id string) error {
	if _, ok := v.data.budgets[id]; !ok {
		return notFound("budget", id)
	}
	delete(v.data.budgets, id)
	v.dirty = true
	return nil
}

func values[V any](m map[string]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
