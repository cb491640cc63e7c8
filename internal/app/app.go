// Package app assembles the ledgers and services over one store.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/ledger"
	"fintrack/internal/ports"
	"fintrack/internal/rates"
	"fintrack/internal/services"
	"fintrack/internal/settings"
)

type Options struct {
	WarningThreshold float64
	RateCacheSize    int
	RateCacheTTL     time.Duration
	Platform         language.Tag
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WarningThreshold: cfg.BudgetWarningThreshold,
		RateCacheSize:    cfg.RateCacheSize,
		RateCacheTTL:     cfg.RateCacheTTL,
		Platform:         settings.PlatformLocale(os.Getenv),
	}
}

type App struct {
	Store        ports.Store
	Accounts     *ledger.AccountLedger
	Cards        *ledger.CreditCardLedger
	Rates        *rates.Book
	Transactions *services.TransactionService
	Recurring    *services.RecurringService
	Processor    *services.RecurringProcessor
	Budgets      *services.BudgetService
	Alerts       *services.AlertCenter
	Streaks      *services.StreakService
	Settings     *settings.Store

	caches   *cache.Manager
	cacheTTL time.Duration
}

// New wires every component. Call Load before reading any snapshot.
func New(store ports.Store, events ports.Publisher, opts Options) *App {
	if events == nil {
		events = ports.NopPublisher{}
	}
	if opts.RateCacheSize < 1 {
		opts.RateCacheSize = 1
	}
	if opts.WarningThreshold <= 0 {
		opts.WarningThreshold = services.DefaultWarningThreshold
	}

	rateCache := cache.NewLRUCache[decimal.Decimal](opts.RateCacheSize, opts.RateCacheTTL)
	caches := cache.NewManager()
	caches.Register(rateCache)

	book := rates.NewBook(store, rateCache)
	accounts := ledger.NewAccountLedger(store, book, events)
	budgets := services.NewBudgetService(store, events)

	return &App{
		Store:        store,
		Accounts:     accounts,
		Cards:        ledger.NewCreditCardLedger(store, events),
		Rates:        book,
		Transactions: services.NewTransactionService(store, accounts, events),
		Recurring:    services.NewRecurringService(store),
		Processor:    services.NewRecurringProcessor(store, accounts, events),
		Budgets:      budgets,
		Alerts:       services.NewAlertCenter(budgets, opts.WarningThreshold),
		Streaks:      services.NewStreakService(store),
		Settings:     settings.NewStore(store, opts.Platform),
		caches:       caches,
		cacheTTL:     opts.RateCacheTTL,
	}
}

// Load fills the in-memory snapshots from storage concurrently.
func (a *App) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Accounts.Load(ctx); err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.Cards.Load(ctx); err != nil {
			return fmt.Errorf("load credit cards: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.Settings.Load(ctx)
	})
	return g.Wait()
}

// Start runs the cache sweeper until Close or ctx cancellation.
func (a *App) Start(ctx context.Context) {
	if a.cacheTTL > 0 {
		a.caches.Start(ctx, a.cacheTTL)
	}
}

func (a *App) Close() {
	a.caches.Stop()
}
