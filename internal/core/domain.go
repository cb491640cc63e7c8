package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	AccountCash    AccountType = "cash"
	AccountDebit   AccountType = "debit"
	AccountCredit  AccountType = "credit"
	AccountEWallet AccountType = "ewallet"
	AccountOther   AccountType = "other"
)

const (
	Expense  TransactionType = "expense"
	Income   TransactionType = "income"
	Transfer TransactionType = "transfer"
)

const (
	MonthlyBudget BudgetPeriod = "monthly"
	YearlyBudget  BudgetPeriod = "yearly"
)

const (
	AlertSafe AlertLevel = iota
	AlertWarning
	AlertDanger
)

type (
	Frequency       string
	AccountType     string
	TransactionType string
	BudgetPeriod    string
	AlertLevel      int

	Account struct {
		ID        string          `json:"id" validate:"required"`
		Name      string          `json:"name" validate:"notblank,max=100"`
		Type      AccountType     `json:"type" validate:"oneof=cash debit credit ewallet other"`
		Currency  string          `json:"currency" validate:"required,iso4217"`
		Balance   decimal.Decimal `json:"balance"`
		IsDefault bool            `json:"is_default"`
		Icon      string          `json:"icon,omitempty" validate:"max=50"`
		CreatedAt time.Time       `json:"created_at"`
		UpdatedAt time.Time       `json:"updated_at"`
	}

	CreditCard struct {
		ID          string          `json:"id" validate:"required"`
		Name        string          `json:"name" validate:"notblank,max=100"`
		Currency    string          `json:"currency" validate:"required,iso4217"`
		CreditLimit decimal.Decimal `json:"credit_limit"`
		UsedAmount  decimal.Decimal `json:"used_amount"`
		BillDay     int             `json:"bill_day" validate:"min=1,max=28"`
		RepayDay    int             `json:"repay_day" validate:"min=1,max=28"`
		Enabled     bool            `json:"enabled"`
	}

	Transaction struct {
		ID              string          `json:"id" validate:"required"`
		Type            TransactionType `json:"type" validate:"oneof=expense income transfer"`
		AccountID       string          `json:"account_id" validate:"required"`
		TargetAccountID string          `json:"target_account_id,omitempty" validate:"required_if=Type transfer"`
		Amount          decimal.Decimal `json:"amount"`
		TargetAmount    decimal.Decimal `json:"target_amount"`
		Currency        string          `json:"currency" validate:"required,iso4217"`
		CategoryID      string          `json:"category_id,omitempty"`
		Note            string          `json:"note,omitempty" validate:"max=500"`
		OccurredAt      time.Time       `json:"occurred_at"`
		RecurringID     string          `json:"recurring_id,omitempty"`
	}

	// RecurringTransaction is a template that materializes one transaction
	// each time NextExecuteAt is reached.
	RecurringTransaction struct {
		ID             string          `json:"id" validate:"required"`
		AccountID      string          `json:"account_id" validate:"required"`
		Type           TransactionType `json:"type" validate:"oneof=expense income"`
		Amount         decimal.Decimal `json:"amount"`
		CategoryID     string          `json:"category_id,omitempty"`
		Note           string          `json:"note,omitempty" validate:"max=500"`
		Frequency      Frequency       `json:"frequency" validate:"oneof=daily weekly monthly yearly"`
		StartDate      Date            `json:"start_date"`
		EndDate        Date            `json:"end_date"`
		LastExecutedAt time.Time       `json:"last_executed_at"`
		NextExecuteAt  time.Time       `json:"next_execute_at"`
		Enabled        bool            `json:"enabled"`
	}

	Budget struct {
		ID         string          `json:"id" validate:"required"`
		CategoryID string          `json:"category_id,omitempty"` // empty for the total budget
		Period     BudgetPeriod    `json:"period" validate:"oneof=monthly yearly"`
		Currency   string          `json:"currency" validate:"required,iso4217"`
		Amount     decimal.Decimal `json:"amount"`
		Year       int             `json:"year" validate:"min=2000,max=2100"`
		Month      int             `json:"month" validate:"min=0,max=12"`
	}

	BudgetUsage struct {
		Budget Budget
		Spent  decimal.Decimal
	}

	BudgetAlert struct {
		BudgetID   string
		CategoryID string
		Currency   string
		Level      AlertLevel
		Percentage float64
		Spent      decimal.Decimal
		Limit      decimal.Decimal
		IsRead     bool
	}

	ExchangeRate struct {
		Base      string          `json:"base" validate:"required,iso4217"`
		Quote     string          `json:"quote" validate:"required,iso4217"`
		Rate      decimal.Decimal `json:"rate"`
		UpdatedAt time.Time       `json:"updated_at"`
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidRate     = errors.New("invalid exchange rate")
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	ErrSameAccount     = errors.New("source and destination account are the same")
	ErrCardDisabled    = errors.New("credit card is disabled")
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
)

func (a Account) Validate() error {
	return validateStruct(a)
}

func (c CreditCard) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if c.CreditLimit.IsNegative() {
		return fmt.Errorf("%w: credit limit must not be negative", ErrInvalidAmount)
	}
	if c.UsedAmount.IsNegative() || c.UsedAmount.GreaterThan(c.CreditLimit) {
		return fmt.Errorf("%w: used amount must be within [0, credit limit]", ErrInvalidAmount)
	}
	return nil
}

// Available returns the unused part of the credit limit.
func (c CreditCard) Available() decimal.Decimal {
	return c.CreditLimit.Sub(c.UsedAmount)
}

// Utilization returns the used share of the limit in percent.
func (c CreditCard) Utilization() float64 {
	if !c.CreditLimit.IsPositive() {
		return 0
	}
	return c.UsedAmount.Div(c.CreditLimit).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// NextRepayDate returns the next repayment day on or after now's calendar date.
func (c CreditCard) NextRepayDate(now time.Time) time.Time {
	y, m, d := now.Date()
	due := time.Date(y, m, c.RepayDay, 0, 0, 0, 0, now.Location())
	if d > c.RepayDay {
		due = due.AddDate(0, 1, 0)
	}
	return due
}

func (t Transaction) Validate() error {
	if err := validateStruct(t); err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.OccurredAt.IsZero() {
		return fmt.Errorf("%w: occurred_at is required", ErrInvalidInput)
	}
	if t.Type == Transfer && t.AccountID == t.TargetAccountID {
		return ErrSameAccount
	}
	return nil
}

// SourceDelta is the balance change applied to AccountID.
func (t Transaction) SourceDelta() decimal.Decimal {
	if t.Type == Income {
		return t.Amount
	}
	return t.Amount.Neg()
}

// TargetDelta is the balance change applied to TargetAccountID of a transfer.
func (t Transaction) TargetDelta() decimal.Decimal {
	if t.TargetAmount.IsZero() {
		return t.Amount
	}
	return t.TargetAmount
}

func (r RecurringTransaction) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := r.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !r.EndDate.IsZero() {
		if err := r.EndDate.Validate(); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		if r.EndDate.Before(r.StartDate.Time) {
			return fmt.Errorf("%w: end date must not be before start date", ErrInvalidInput)
		}
	}
	return nil
}

// IsDue reports whether the rule should fire at now.
func (r RecurringTransaction) IsDue(now time.Time) bool {
	if !r.Enabled || r.NextExecuteAt.IsZero() {
		return false
	}
	if r.NextExecuteAt.After(now) {
		return false
	}
	return !r.EndsBefore(r.NextExecuteAt)
}

// EndsBefore reports whether the rule's end date lies before t's calendar day.
func (r RecurringTransaction) EndsBefore(t time.Time) bool {
	if r.EndDate.IsZero() {
		return false
	}
	return DateOf(t).After(r.EndDate.Time)
}

// Materialize builds the transaction produced by one execution of the rule.
func (r RecurringTransaction) Materialize(id, currency string, at time.Time) Transaction {
	return Transaction{
		ID:          id,
		Type:        r.Type,
		AccountID:   r.AccountID,
		Amount:      r.Amount,
		Currency:    currency,
		CategoryID:  r.CategoryID,
		Note:        r.Note,
		OccurredAt:  at,
		RecurringID: r.ID,
	}
}

func (b Budget) Validate() error {
	if err := validateStruct(b); err != nil {
		return err
	}
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if b.Period == MonthlyBudget && b.Month == 0 {
		return fmt.Errorf("%w: monthly budget requires a month", ErrInvalidMonth)
	}
	if b.Period == YearlyBudget && b.Month != 0 {
		return fmt.Errorf("%w: yearly budget must not set a month", ErrInvalidMonth)
	}
	return nil
}

// Range returns the half-open [from, to) period the budget covers.
func (b Budget) Range(loc *time.Location) (time.Time, time.Time) {
	if b.Period == YearlyBudget {
		from := time.Date(b.Year, time.January, 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(1, 0, 0)
	}
	from := time.Date(b.Year, time.Month(b.Month), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0)
}

// Covers reports whether now falls inside the budget period.
func (b Budget) Covers(now time.Time) bool {
	from, to := b.Range(now.Location())
	return !now.Before(from) && now.Before(to)
}

// Percentage returns spent over the budget amount in percent, rounded to
// two decimals. A non-positive budget amount yields zero.
func (u BudgetUsage) Percentage() float64 {
	if !u.Budget.Amount.IsPositive() {
		return 0
	}
	return u.Spent.Div(u.Budget.Amount).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

func (l AlertLevel) String() string {
	switch l {
	case AlertDanger:
		return "danger"
	case AlertWarning:
		return "warning"
	default:
		return "safe"
	}
}

func (e ExchangeRate) Validate() error {
	if err := validateStruct(e); err != nil {
		return err
	}
	if !e.Rate.IsPositive() {
		return ErrInvalidRate
	}
	return nil
}
