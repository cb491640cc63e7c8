package worker

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/core"
)

type AlertRefresher interface {
	Refresh(ctx context.Context, now time.Time) ([]core.BudgetAlert, error)
}

// AlertWorker recomputes budget alerts when spending changes.
type AlertWorker struct {
	alerts AlertRefresher
	now    func() time.Time
}

func NewAlertWorker(alerts AlertRefresher) *AlertWorker {
	return &AlertWorker{alerts: alerts, now: time.Now}
}

// affectsBudgets lists the events that can change budget usage.
var affectsBudgets = map[core.EventType]bool{
	core.EventTransactionCreated: true,
	core.EventTransactionDeleted: true,
	core.EventBudgetChanged:      true,
}

// HandleEvent refreshes the alerts for spending events and ignores the rest.
func (w *AlertWorker) HandleEvent(ctx context.Context, e core.Event) error {
	if !affectsBudgets[e.Type] {
		slog.DebugContext(ctx, "Ignoring ledger event", "type", e.Type, "id", e.EntityID)
		return nil
	}
	return w.Refresh(ctx, w.now())
}

// Refresh recomputes the alerts and logs every danger alert.
func (w *AlertWorker) Refresh(ctx context.Context, now time.Time) error {
	alerts, err := w.alerts.Refresh(ctx, now)
	if err != nil {
		return err
	}

	unread := 0
	for _, a := range alerts {
		if !a.IsRead {
			unread++
		}
		if a.Level == core.AlertDanger {
			slog.WarnContext(ctx, "Budget exceeded",
				"budget_id", a.BudgetID,
				"category_id", a.CategoryID,
				"percentage", a.Percentage,
				"spent", a.Spent.String(),
				"limit", a.Limit.String(),
				"currency", a.Currency)
		}
	}
	slog.InfoContext(ctx, "Budget alerts refreshed", "alerts", len(alerts), "unread", unread)
	return nil
}
