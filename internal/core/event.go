package core

import "time"

// EventType names a committed ledger change.
type EventType string

const (
	EventTransferCompleted  EventType = "transfer.completed"
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventBalanceAdjusted    EventType = "balance.adjusted"
	EventAccountChanged     EventType = "account.changed"
	EventCardChanged        EventType = "card.changed"
	EventBudgetChanged      EventType = "budget.changed"
)

// Event is published after a change has been committed to storage.
type Event struct {
	Type       EventType `json:"type"`
	EntityID   string    `json:"entity_id"`
	AccountIDs []string  `json:"account_ids,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
