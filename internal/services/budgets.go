package services

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

// DefaultWarningThreshold is the usage percentage that raises a warning.
const DefaultWarningThreshold = 80.0

// ClassifyUsage maps a usage percentage to an alert level.
func ClassifyUsage(percentage, warningThreshold float64) core.AlertLevel {
	switch {
	case percentage >= 100:
		return core.AlertDanger
	case percentage >= warningThreshold:
		return core.AlertWarning
	default:
		return core.AlertSafe
	}
}

// EvaluateAlerts derives the alert list from usages. Safe budgets are
// dropped, IsRead carries over from previous by budget id, and alerts are
// ordered danger first, then by percentage descending.
func EvaluateAlerts(usages []core.BudgetUsage, previous []core.BudgetAlert, warningThreshold float64) []core.BudgetAlert {
	read := make(map[string]bool, len(previous))
	for _, a := range previous {
		read[a.BudgetID] = a.IsRead
	}

	alerts := make([]core.BudgetAlert, 0, len(usages))
	for _, u := range usages {
		pct := u.Percentage()
		level := ClassifyUsage(pct, warningThreshold)
		if level == core.AlertSafe {
			continue
		}
		alerts = append(alerts, core.BudgetAlert{
			BudgetID:   u.Budget.ID,
			CategoryID: u.Budget.CategoryID,
			Currency:   u.Budget.Currency,
			Level:      level,
			Percentage: pct,
			Spent:      u.Spent,
			Limit:      u.Budget.Amount,
			IsRead:     read[u.Budget.ID],
		})
	}

	slices.SortStableFunc(alerts, func(a, b core.BudgetAlert) int {
		if a.Level != b.Level {
			return cmp.Compare(b.Level, a.Level)
		}
		return cmp.Compare(b.Percentage, a.Percentage)
	})
	return alerts
}

// UnreadCount counts alerts not yet marked read.
func UnreadCount(alerts []core.BudgetAlert) int {
	n := 0
	for _, a := range alerts {
		if !a.IsRead {
			n++
		}
	}
	return n
}

type BudgetStore interface {
	ports.BudgetStore
	ports.TransactionStore
}

type NewBudget struct {
	CategoryID string
	Period     core.BudgetPeriod
	Currency   string
	Amount     decimal.Decimal
	Year       int
	Month      int
}

type BudgetService struct {
	store  BudgetStore
	events ports.Publisher
	newID  func() string
}

func NewBudgetService(store BudgetStore, events ports.Publisher) *BudgetService {
	if events == nil {
		events = ports.NopPublisher{}
	}
	return &BudgetService{store: store, events: events, newID: uuid.NewString}
}

func (s *BudgetService) Create(ctx context.Context, in NewBudget) (core.Budget, error) {
	b := core.Budget{
		ID:         s.newID(),
		CategoryID: in.CategoryID,
		Period:     in.Period,
		Currency:   in.Currency,
		Amount:     in.Amount,
		Year:       in.Year,
		Month:      in.Month,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := s.store.InsertBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	s.changed(ctx, b.ID)
	return b, nil
}

func (s *BudgetService) Update(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	s.changed(ctx, b.ID)
	return nil
}

func (s *BudgetService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteBudget(ctx, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	s.changed(ctx, id)
	return nil
}

func (s *BudgetService) changed(ctx context.Context, id string) {
	e := core.Event{Type: core.EventBudgetChanged, EntityID: id, OccurredAt: time.Now()}
	if err := s.events.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "Failed to publish budget event", "id", id, "error", err)
	}
}

func (s *BudgetService) List(ctx context.Context) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx)
}

// Usages returns the spending of every budget whose period contains now.
// Only expenses in the budget's currency count towards it.
func (s *BudgetService) Usages(ctx context.Context, now time.Time) ([]core.BudgetUsage, error) {
	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	var usages []core.BudgetUsage
	for _, b := range budgets {
		if !b.Covers(now) {
			continue
		}
		from, to := b.Range(now.Location())
		spent, err := s.store.SumExpenses(ctx, b.CategoryID, from, to)
		if err != nil {
			return nil, fmt.Errorf("sum expenses for budget %s: %w", b.ID, err)
		}
		usages = append(usages, core.BudgetUsage{Budget: b, Spent: spent.Get(b.Currency)})
	}
	return usages, nil
}

// AlertCenter holds the current alert list and its read state.
type AlertCenter struct {
	budgets   *BudgetService
	threshold float64
	state     *state.Container[[]core.BudgetAlert]
	mu        sync.Mutex
}

// NewAlertCenter uses DefaultWarningThreshold when threshold is not positive.
func NewAlertCenter(budgets *BudgetService, threshold float64) *AlertCenter {
	if threshold <= 0 {
		threshold = DefaultWarningThreshold
	}
	return &AlertCenter{
		budgets:   budgets,
		threshold: threshold,
		state:     state.New[[]core.BudgetAlert](nil),
	}
}

// Refresh recomputes the alerts for now's budget periods.
func (c *AlertCenter) Refresh(ctx context.Context, now time.Time) ([]core.BudgetAlert, error) {
	usages, err := c.budgets.Usages(ctx, now)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	alerts := EvaluateAlerts(usages, c.state.Get(), c.threshold)
	c.state.Set(alerts)
	slog.DebugContext(ctx, "Budget alerts refreshed", "alerts", len(alerts), "unread", UnreadCount(alerts))
	return slices.Clone(alerts), nil
}

func (c *AlertCenter) Alerts() []core.BudgetAlert {
	return slices.Clone(c.state.Get())
}

func (c *AlertCenter) UnreadCount() int {
	return UnreadCount(c.state.Get())
}

func (c *AlertCenter) Subscribe(fn func([]core.BudgetAlert)) func() {
	return c.state.Subscribe(fn)
}

func (c *AlertCenter) MarkRead(budgetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.state.Get()
	i := slices.IndexFunc(cur, func(a core.BudgetAlert) bool { return a.BudgetID == budgetID })
	if i < 0 {
		return fmt.Errorf("alert for budget %s: %w", budgetID, core.ErrNotFound)
	}
	next := slices.Clone(cur)
	next[i].IsRead = true
	c.state.Set(next)
	return nil
}

func (c *AlertCenter) MarkAllRead() {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := slices.Clone(c.state.Get())
	for i := range next {
		next[i].IsRead = true
	}
	c.state.Set(next)
}
