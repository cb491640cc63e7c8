package ledger

import (
	"cmp"
	"context"
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

type CardStore interface {
	ports.CreditCardStore
	ports.Transactor
}

type NewCreditCard struct {
	Name        string
	Currency    string
	CreditLimit decimal.Decimal
	UsedAmount  decimal.Decimal
	BillDay     int
	RepayDay    int
}

// CreditCardLedger keeps UsedAmount within [0, CreditLimit] on every write.
type CreditCardLedger struct {
	store  CardStore
	events ports.Publisher
	state  *state.Container[[]core.CreditCard]

	writeMu sync.Mutex
	now     func() time.Time
	newID   func() string
}

func NewCreditCardLedger(store CardStore, events ports.Publisher) *CreditCardLedger {
	if events == nil {
		events = ports.NopPublisher{}
	}
	return &CreditCardLedger{
		store:  store,
		events: events,
		state:  state.New[[]core.CreditCard](nil),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (l *CreditCardLedger) Load(ctx context.Context) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	cards, err := l.store.ListCreditCards(ctx)
	if err != nil {
		return fmt.Errorf("load credit cards: %w", err)
	}
	l.state.Set(cards)
	return nil
}

func (l *CreditCardLedger) Cards() []core.CreditCard {
	return slices.Clone(l.state.Get())
}

func (l *CreditCardLedger) Get(id string) (core.CreditCard, error) {
	for _, c := range l.state.Get() {
		if c.ID == id {
			return c, nil
		}
	}
	return core.CreditCard{}, fmt.Errorf("credit card %s: %w", id, core.ErrNotFound)
}

func (l *CreditCardLedger) Subscribe(fn func([]core.CreditCard)) func() {
	return l.state.Subscribe(fn)
}

func (l *CreditCardLedger) Create(ctx context.Context, in NewCreditCard) (core.CreditCard, error) {
	c := core.CreditCard{
		ID:          l.newID(),
		Name:        in.Name,
		Currency:    in.Currency,
		CreditLimit: in.CreditLimit,
		UsedAmount:  in.UsedAmount,
		BillDay:     in.BillDay,
		RepayDay:    in.RepayDay,
		Enabled:     true,
	}
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if err := l.store.InTx(ctx, func(tx ports.Tx) error { return tx.InsertCreditCard(ctx, c) }); err != nil {
		return core.CreditCard{}, fmt.Errorf("create credit card: %w", err)
	}

	l.apply(c, false)
	l.publish(ctx, c.ID)
	return c, nil
}

// Update rewrites the card settings. A lowered limit clamps UsedAmount.
func (l *CreditCardLedger) Update(ctx context.Context, in core.CreditCard) (core.CreditCard, error) {
	return l.mutate(ctx, in.ID, func(c *core.CreditCard) error {
		c.Name = in.Name
		c.Currency = in.Currency
		c.CreditLimit = in.CreditLimit
		c.BillDay = in.BillDay
		c.RepayDay = in.RepayDay
		if c.CreditLimit.IsNegative() {
			return fmt.Errorf("%w: credit limit must not be negative", core.ErrInvalidAmount)
		}
		c.UsedAmount = core.Clamp(c.UsedAmount, decimal.Zero, c.CreditLimit)
		return nil
	})
}

func (l *CreditCardLedger) Delete(ctx context.Context, id string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if err := l.store.InTx(ctx, func(tx ports.Tx) error { return tx.DeleteCreditCard(ctx, id) }); err != nil {
		return fmt.Errorf("delete credit card: %w", err)
	}

	l.apply(core.CreditCard{ID: id}, true)
	l.publish(ctx, id)
	return nil
}

func (l *CreditCardLedger) SetEnabled(ctx context.Context, id string, enabled bool) (core.CreditCard, error) {
	return l.mutate(ctx, id, func(c *core.CreditCard) error {
		c.Enabled = enabled
		return nil
	})
}

// Pay lowers the used amount. Overpayment is absorbed at zero.
func (l *CreditCardLedger) Pay(ctx context.Context, id string, amount decimal.Decimal) (core.CreditCard, error) {
	if !amount.IsPositive() {
		return core.CreditCard{}, core.ErrInvalidAmount
	}
	return l.mutate(ctx, id, func(c *core.CreditCard) error {
		c.UsedAmount = core.Clamp(c.UsedAmount.Sub(amount), decimal.Zero, c.CreditLimit)
		return nil
	})
}

// Charge raises the used amount, capped at the credit limit.
func (l *CreditCardLedger) Charge(ctx context.Context, id string, amount decimal.Decimal) (core.CreditCard, error) {
	if !amount.IsPositive() {
		return core.CreditCard{}, core.ErrInvalidAmount
	}
	return l.mutate(ctx, id, func(c *core.CreditCard) error {
		if !c.Enabled {
			return core.ErrCardDisabled
		}
		c.UsedAmount = core.Clamp(c.UsedAmount.Add(amount), decimal.Zero, c.CreditLimit)
		return nil
	})
}

func (l *CreditCardLedger) mutate(ctx context.Context, id string, fn func(c *core.CreditCard) error) (core.CreditCard, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var updated core.CreditCard
	err := l.store.InTx(ctx, func(tx ports.Tx) error {
		c, err := tx.GetCreditCard(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		updated = c
		return tx.UpdateCreditCard(ctx, c)
	})
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("update credit card %s: %w", id, err)
	}

	l.apply(updated, false)
	l.publish(ctx, id)
	return updated, nil
}

func (l *CreditCardLedger) apply(card core.CreditCard, remove bool) {
	l.state.Update(func(cur []core.CreditCard) []core.CreditCard {
		next := make([]core.CreditCard, 0, len(cur)+1)
		for _, c := range cur {
			if c.ID != card.ID {
				next = append(next, c)
			}
		}
		if !remove {
			next = append(next, card)
		}
		slices.SortFunc(next, func(a, b core.CreditCard) int {
			if c := cmp.Compare(a.Name, b.Name); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		return next
	})
}

func (l *CreditCardLedger) publish(ctx context.Context, id string) {
	e := core.Event{Type: core.EventCardChanged, EntityID: id, OccurredAt: l.now().UTC()}
	if err := l.events.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "Failed to publish card event", "id", id, "error", err)
	}
}

// DueWithin returns enabled cards with an outstanding balance whose next
// repayment falls within days of now, soonest first.
func DueWithin(cards []core.CreditCard, now time.Time, days int) []core.CreditCard {
	limit := core.DateOf(now).AddDays(days)
	var due []core.CreditCard
	for _, c := range cards {
		if !c.Enabled || !c.UsedAmount.IsPositive() {
			continue
		}
		if core.DateOf(c.NextRepayDate(now)).After(limit.Time) {
			continue
		}
		due = append(due, c)
	}
	slices.SortStableFunc(due, func(a, b core.CreditCard) int {
		return a.NextRepayDate(now).Compare(b.NextRepayDate(now))
	})
	return due
}

// Debt sums the used amounts per currency.
func Debt(cards []core.CreditCard) core.MultiCurrencyAmount {
	sum := core.NewMultiCurrencyAmount()
	for _, c := range cards {
		sum.Add(c.Currency, c.UsedAmount)
	}
	return sum
}
