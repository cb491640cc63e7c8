package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ports/memory"
)

func newBook() (*Book, *memory.Store) {
	store := memory.New()
	return NewBook(store, cache.NewLRUCache[decimal.Decimal](16, time.Hour)), store
}

func TestRate(t *testing.T) {
	ctx := context.Background()
	book, _ := newBook()
	if err := book.Set(ctx, "eur", "USD", decimal.RequireFromString("1.25")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	tests := []struct {
		name        string
		base, quote string
		want        string
		wantErr     error
	}{
		{name: "identity", base: "JPY", quote: "JPY", want: "1"},
		{name: "stored pair", base: "EUR", quote: "USD", want: "1.25"},
		{name: "inverse pair", base: "USD", quote: "EUR", want: "0.8"},
		{name: "unknown pair", base: "GBP", quote: "JPY", wantErr: core.ErrRateUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := book.Rate(ctx, tt.base, tt.quote)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Rate: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Rate = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSetInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	book, _ := newBook()

	if err := book.Set(ctx, "EUR", "USD", decimal.RequireFromString("1.10")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := book.Rate(ctx, "USD", "EUR"); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if err := book.Set(ctx, "EUR", "USD", decimal.RequireFromString("2")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := book.Rate(ctx, "USD", "EUR")
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Rate = %s, want 0.5 after update", got)
	}
}

func TestSetRejectsInvalidRates(t *testing.T) {
	ctx := context.Background()
	book, _ := newBook()

	if err := book.Set(ctx, "EUR", "USD", decimal.Zero); !errors.Is(err, core.ErrInvalidRate) {
		t.Errorf("zero rate error = %v, want ErrInvalidRate", err)
	}
	if err := book.Set(ctx, "EUR", "EUR", decimal.NewFromInt(2)); !errors.Is(err, core.ErrInvalidRate) {
		t.Errorf("same pair error = %v, want ErrInvalidRate", err)
	}
}
