package log

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldID        = "id"
	FieldAccountID = "account_id"
	FieldCardID    = "card_id"
	FieldRuleID    = "rule_id"
	FieldBudgetID  = "budget_id"
	FieldAmount    = "amount"
	FieldCurrency  = "currency"
	FieldEventType = "event_type"
	FieldFired     = "fired"
	FieldDuration  = "duration"
	FieldBackend   = "backend"
	FieldSignal    = "signal"
	FieldLanguage  = "language"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentLedger    = "ledger"
	ComponentRecurring = "recurring"
	ComponentAlerts    = "alerts"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentBackend   = "backend"
	ComponentSettings  = "settings"
	ComponentReport    = "report"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpLoad     = "load"
	OpTransfer = "transfer"
	OpProcess  = "process"
	OpRefresh  = "refresh"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithAccount(id string) LogFields {
	f[FieldAccountID] = id
	return f
}

// WithMoney adds the amount as a decimal string alongside its currency.
func (f LogFields) WithMoney(amount decimal.Decimal, currency string) LogFields {
	f[FieldAmount] = amount.String()
	f[FieldCurrency] = currency
	return f
}

// ToSlice converts LogFields to key-value pairs ordered by key.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
