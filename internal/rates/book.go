// Package rates resolves exchange rates from storage through an LRU cache.
package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// inverseScale is the precision kept when inverting a stored reverse pair.
const inverseScale = 10

type Book struct {
	store ports.RateStore
	cache cache.Cache[decimal.Decimal]
	now   func() time.Time
}

func NewBook(store ports.RateStore, c cache.Cache[decimal.Decimal]) *Book {
	return &Book{store: store, cache: c, now: time.Now}
}

func key(base, quote string) string {
	return base + "/" + quote
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Rate returns how many units of quote one unit of base buys.
func (b *Book) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	base, quote = normalize(base), normalize(quote)
	if base == quote {
		return decimal.NewFromInt(1), nil
	}
	if r, ok := b.cache.Get(key(base, quote)); ok {
		return r, nil
	}

	r, err := b.lookup(ctx, base, quote)
	if err != nil {
		return decimal.Zero, err
	}
	b.cache.Set(key(base, quote), r)
	return r, nil
}

func (b *Book) lookup(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	stored, err := b.store.GetRate(ctx, base, quote)
	if err == nil {
		return stored.Rate, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return decimal.Zero, fmt.Errorf("get rate %s: %w", key(base, quote), err)
	}

	reverse, err := b.store.GetRate(ctx, quote, base)
	if errors.Is(err, core.ErrNotFound) {
		return decimal.Zero, fmt.Errorf("%s: %w", key(base, quote), core.ErrRateUnavailable)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get rate %s: %w", key(quote, base), err)
	}
	if !reverse.Rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: %w", key(quote, base), core.ErrInvalidRate)
	}
	return decimal.NewFromInt(1).DivRound(reverse.Rate, inverseScale), nil
}

// Set stores the rate and drops both directions from the cache.
func (b *Book) Set(ctx context.Context, base, quote string, rate decimal.Decimal) error {
	r := core.ExchangeRate{
		Base:      normalize(base),
		Quote:     normalize(quote),
		Rate:      rate,
		UpdatedAt: b.now(),
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Base == r.Quote {
		return fmt.Errorf("%w: base and quote are both %s", core.ErrInvalidRate, r.Base)
	}
	if err := b.store.PutRate(ctx, r); err != nil {
		return fmt.Errorf("put rate: %w", err)
	}
	b.cache.Delete(key(r.Base, r.Quote))
	b.cache.Delete(key(r.Quote, r.Base))
	return nil
}
