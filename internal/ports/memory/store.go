package memory

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// The methods below run single operations as their own unit of work.

func (s *Store) do(ctx context.Context, fn func(v *view) error) error {
	return s.InTx(ctx, func(tx ports.Tx) error { return fn(tx.(*view)) })
}

func (s *Store) ListAccounts(ctx context.Context) (out []core.Account, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.ListAccounts(ctx)
		return err
	})
	return out, err
}

func (s *Store) GetAccount(ctx context.Context, id string) (out core.Account, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.GetAccount(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) InsertAccount(ctx context.Context, a core.Account) error {
	return s.do(ctx, func(v *view) error {
		return v.InsertAccount(ctx, a)
	})
}

func (s *Store) UpdateAccount(ctx context.Context, a core.Account) error {
	return s.do(ctx, func(v *view) error {
		return v.UpdateAccount(ctx, a)
	})
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return s.do(ctx, func(v *view) error {
		return v.DeleteAccount(ctx, id)
	})
}

func (s *Store) ListCreditCards(ctx context.Context) (out []core.CreditCard, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.ListCreditCards(ctx)
		return err
	})
	return out, err
}

func (s *Store) GetCreditCard(ctx context.Context, id string) (out core.CreditCard, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.GetCreditCard(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) InsertCreditCard(ctx context.Context, c core.CreditCard) error {
	return s.do(ctx, func(v *view) error {
		return v.InsertCreditCard(ctx, c)
	})
}

func (s *Store) UpdateCreditCard(ctx context.Context, c core.CreditCard) error {
	return s.do(ctx, func(v *view) error {
		return v.UpdateCreditCard(ctx, c)
	})
}

func (s *Store) DeleteCreditCard(ctx context.Context, id string) error {
	return s.do(ctx, func(v *view) error {
		return v.DeleteCreditCard(ctx, id)
	})
}

func (s *Store) GetTransaction(ctx context.Context, id string) (out core.Transaction, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.GetTransaction(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) error {
	return s.do(ctx, func(v *view) error {
		return v.InsertTransaction(ctx, t)
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return s.do(ctx, func(v *view) error {
		return v.DeleteTransaction(ctx, id)
	})
}

func (s *Store) ListTransactions(ctx context.Context, from, to time.Time) (out []core.Transaction, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.ListTransactions(ctx, from, to)
		return err
	})
	return out, err
}

func (s *Store) ListTransactionTimes(ctx context.Context) (out []time.Time, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.ListTransactionTimes(ctx)
		return err
	})
	return out, err
}

func (s *Store) SumExpenses(ctx context.Context, categoryID string, from, to time.Time) (out core.MultiCurrencyAmount, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.SumExpenses(ctx, categoryID, from, to)
		return err
	})
	return out, err
}

func (s *Store) ListRecurring(ctx context.Context) (out []core.RecurringTransaction, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.ListRecurring(ctx)
		return err
	})
	return out, err
}

func (s *Store) GetRecurring(ctx context.Context, id string) (out core.RecurringTransaction, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.GetRecurring(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) InsertRecurring(ctx context.Context, r core.RecurringTransaction) error {
	return s.do(ctx, func(v *view) error {
		return v.InsertRecurring(ctx, r)
	})
}

func (s *Store) UpdateRecurring(ctx context.Context, r core.RecurringTransaction) error {
	return s.do(ctx, func(v *view) error {
		return v.UpdateRecurring(ctx, r)
	})
}

func (s *Store) DeleteRecurring(ctx context.Context, id string) error {
	return s.do(ctx, func(v *view) error {
		return v.DeleteRecurring(ctx, id)
	})
}

func (s *Store) AdvanceRecurring(ctx context.Context, id string, expectedNext, next, last time.Time) error {
	return s.do(ctx, func(v *view) error {
		return v.AdvanceRecurring(ctx, id, expectedNext, next, last)
	})
}

func (s *Store) ListBudgets(ctx context.Context) (out []core.Budget, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.ListBudgets(ctx)
		return err
	})
	return out, err
}

func (s *Store) GetBudget(ctx context.Context, id string) (out core.Budget, err error) {
	err = s.do(ctx, func(v *view) error {
		out, err = v.GetBudget(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) InsertBudget(ctx context.Context, b core.Budget) error {
	return s.do(ctx, func(v *view) error {
		return v.InsertBudget(ctx, b)
	})
}

func (s *Store) UpdateBudget(ctx context.Context, b core.Budget) error {
	return s.do(ctx, func(v *view) error {
		return v.UpdateBudget(ctx, b)
	})
}

func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	return s.do(ctx, func(v *view) error {
		return v.DeleteBudget(ctx, id)
	})
}

func rateKey(base, quote string) string {
	return base + "/" + quote
}

func (s *Store) GetRate(_ context.Context, base, quote string) (core.ExchangeRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rates[rateKey(base, quote)]
	if !ok {
		return core.ExchangeRate{}, notFound("exchange rate", rateKey(base, quote))
	}
	return r, nil
}

func (s *Store) PutRate(_ context.Context, r core.ExchangeRate) error {
	if !r.Rate.IsPositive() {
		return fmt.Errorf("put rate %s: %w", rateKey(r.Base, r.Quote), core.ErrInvalidRate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[rateKey(r.Base, r.Quote)] = r
	return nil
}

func (s *Store) GetPreference(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.prefs[key]
	if !ok {
		return "", notFound("preference", key)
	}
	return v, nil
}

func (s *Store) SetPreference(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	s.prefs[key] = value
	return nil
}
