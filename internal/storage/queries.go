package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs every statement against either the pool or a transaction.
type Queries struct {
	db dbtx
}

func New(db dbtx) *Queries {
	return &Queries{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

func parseDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// expectOne maps a zero-row write to core.ErrNotFound.
func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return nil
}

func notFoundOr(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

// Accounts

const accountColumns = `id, name, type, currency, balance, is_default, icon, created_at, updated_at`

func scanAccount(row scanner) (core.Account, error) {
	var (
		a                core.Account
		balance          string
		isDefault        int
		created, updated string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Currency, &balance, &isDefault, &a.Icon, &created, &updated); err != nil {
		return core.Account{}, err
	}
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return core.Account{}, fmt.Errorf("account %s balance: %w", a.ID, err)
	}
	a.IsDefault = isDefault == 1
	if a.CreatedAt, err = parseTime(created); err != nil {
		return core.Account{}, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY is_default DESC, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) GetAccount(ctx context.Context, id string) (core.Account, error) {
	a, err := scanAccount(q.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		return core.Account{}, notFoundOr(err, "account", id)
	}
	return a, nil
}

func (q *Queries) InsertAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, string(a.Type), a.Currency, a.Balance.String(), boolToInt(a.IsDefault), a.Icon,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (q *Queries) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, type = ?, currency = ?, balance = ?, is_default = ?, icon = ?, updated_at = ? WHERE id = ?`,
		a.Name, string(a.Type), a.Currency, a.Balance.String(), boolToInt(a.IsDefault), a.Icon, formatTime(a.UpdatedAt), a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return expectOne(res, "account", a.ID)
}

func (q *Queries) DeleteAccount(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return expectOne(res, "account", id)
}

// Credit cards

const cardColumns = `id, name, currency, credit_limit, used_amount, bill_day, repay_day, enabled`

func scanCard(row scanner) (core.CreditCard, error) {
	var (
		c           core.CreditCard
		limit, used string
		enabled     int
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Currency, &limit, &used, &c.BillDay, &c.RepayDay, &enabled); err != nil {
		return core.CreditCard{}, err
	}
	var err error
	if c.CreditLimit, err = decimal.NewFromString(limit); err != nil {
		return core.CreditCard{}, fmt.Errorf("card %s limit: %w", c.ID, err)
	}
	if c.UsedAmount, err = decimal.NewFromString(used); err != nil {
		return core.CreditCard{}, fmt.Errorf("card %s used amount: %w", c.ID, err)
	}
	c.Enabled = enabled == 1
	return c, nil
}

func (q *Queries) ListCreditCards(ctx context.Context) ([]core.CreditCard, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM credit_cards ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list credit cards: %w", err)
	}
	defer rows.Close()

	var out []core.CreditCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credit card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) GetCreditCard(ctx context.Context, id string) (core.CreditCard, error) {
	c, err := scanCard(q.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM credit_cards WHERE id = ?`, id))
	if err != nil {
		return core.CreditCard{}, notFoundOr(err, "credit card", id)
	}
	return c, nil
}

func (q *Queries) InsertCreditCard(ctx context.Context, c core.CreditCard) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO credit_cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Currency, c.CreditLimit.String(), c.UsedAmount.String(), c.BillDay, c.RepayDay, boolToInt(c.Enabled))
	if err != nil {
		return fmt.Errorf("insert credit card: %w", err)
	}
	return nil
}

func (q *Queries) UpdateCreditCard(ctx context.Context, c core.CreditCard) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE credit_cards SET name = ?, currency = ?, credit_limit = ?, used_amount = ?, bill_day = ?, repay_day = ?, enabled = ? WHERE id = ?`,
		c.Name, c.Currency, c.CreditLimit.String(), c.UsedAmount.String(), c.BillDay, c.RepayDay, boolToInt(c.Enabled), c.ID)
	if err != nil {
		return fmt.Errorf("update credit card: %w", err)
	}
	return expectOne(res, "credit card", c.ID)
}

func (q *Queries) DeleteCreditCard(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM credit_cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete credit card: %w", err)
	}
	return expectOne(res, "credit card", id)
}

// Transactions

const transactionColumns = `id, type, account_id, target_account_id, amount, target_amount, currency, category_id, note, occurred_at, recurring_id`

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t                    core.Transaction
		amount, targetAmount string
		occurred             string
	)
	if err := row.Scan(&t.ID, &t.Type, &t.AccountID, &t.TargetAccountID, &amount, &targetAmount,
		&t.Currency, &t.CategoryID, &t.Note, &occurred, &t.RecurringID); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s amount: %w", t.ID, err)
	}
	if t.TargetAmount, err = decimal.NewFromString(targetAmount); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s target amount: %w", t.ID, err)
	}
	if t.OccurredAt, err = parseTime(occurred); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (q *Queries) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if err != nil {
		return core.Transaction{}, notFoundOr(err, "transaction", id)
	}
	return t, nil
}

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), t.AccountID, t.TargetAccountID, t.Amount.String(), t.TargetAmount.String(),
		t.Currency, t.CategoryID, t.Note, formatTime(t.OccurredAt), t.RecurringID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (q *Queries) DeleteTransaction(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOne(res, "transaction", id)
}

func (q *Queries) ListTransactions(ctx context.Context, from, to time.Time) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE occurred_at >= ? AND occurred_at < ? ORDER BY occurred_at, id`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) ListTransactionTimes(ctx context.Context) ([]time.Time, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT occurred_at FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("list transaction times: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan transaction time: %w", err)
		}
		t, err := parseTime(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SumExpenses adds amounts in Go; decimal text cannot be summed exactly in SQL.
func (q *Queries) SumExpenses(ctx context.Context, categoryID string, from, to time.Time) (core.MultiCurrencyAmount, error) {
	query := `SELECT currency, amount FROM transactions WHERE type = ? AND occurred_at >= ? AND occurred_at < ?`
	args := []any{string(core.Expense), formatTime(from), formatTime(to)}
	if categoryID != "" {
		query += ` AND category_id = ?`
		args = append(args, categoryID)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sum expenses: %w", err)
	}
	defer rows.Close()

	sum := core.NewMultiCurrencyAmount()
	for rows.Next() {
		var code, amount string
		if err := rows.Scan(&code, &amount); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("expense amount %q: %w", amount, err)
		}
		sum.Add(code, d)
	}
	return sum, rows.Err()
}

// Recurring transactions

const recurringColumns = `id, account_id, type, amount, category_id, note, frequency, start_date, end_date, last_executed_at, next_execute_at, enabled`

func scanRecurring(row scanner) (core.RecurringTransaction, error) {
	var (
		r                  core.RecurringTransaction
		amount, start, end string
		last, next         string
		enabled            int
	)
	if err := row.Scan(&r.ID, &r.AccountID, &r.Type, &amount, &r.CategoryID, &r.Note, &r.Frequency,
		&start, &end, &last, &next, &enabled); err != nil {
		return core.RecurringTransaction{}, err
	}
	var err error
	if r.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("recurring %s amount: %w", r.ID, err)
	}
	if r.StartDate, err = parseDate(start); err != nil {
		return core.RecurringTransaction{}, err
	}
	if r.EndDate, err = parseDate(end); err != nil {
		return core.RecurringTransaction{}, err
	}
	if r.LastExecutedAt, err = parseTime(last); err != nil {
		return core.RecurringTransaction{}, err
	}
	if r.NextExecuteAt, err = parseTime(next); err != nil {
		return core.RecurringTransaction{}, err
	}
	r.Enabled = enabled == 1
	return r, nil
}

func (q *Queries) ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+recurringColumns+` FROM recurring_transactions ORDER BY next_execute_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTransaction
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) GetRecurring(ctx context.Context, id string) (core.RecurringTransaction, error) {
	r, err := scanRecurring(q.db.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_transactions WHERE id = ?`, id))
	if err != nil {
		return core.RecurringTransaction{}, notFoundOr(err, "recurring transaction", id)
	}
	return r, nil
}

func (q *Queries) InsertRecurring(ctx context.Context, r core.RecurringTransaction) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO recurring_transactions (`+recurringColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AccountID, string(r.Type), r.Amount.String(), r.CategoryID, r.Note, string(r.Frequency),
		r.StartDate.String(), r.EndDate.String(), formatTime(r.LastExecutedAt), formatTime(r.NextExecuteAt), boolToInt(r.Enabled))
	if err != nil {
		return fmt.Errorf("insert recurring transaction: %w", err)
	}
	return nil
}

func (q *Queries) UpdateRecurring(ctx context.Context, r core.RecurringTransaction) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET account_id = ?, type = ?, amount = ?, category_id = ?, note = ?, frequency = ?,
		 start_date = ?, end_date = ?, last_executed_at = ?, next_execute_at = ?, enabled = ? WHERE id = ?`,
		r.AccountID, string(r.Type), r.Amount.String(), r.CategoryID, r.Note, string(r.Frequency),
		r.StartDate.String(), r.EndDate.String(), formatTime(r.LastExecutedAt), formatTime(r.NextExecuteAt), boolToInt(r.Enabled), r.ID)
	if err != nil {
		return fmt.Errorf("update recurring transaction: %w", err)
	}
	return expectOne(res, "recurring transaction", r.ID)
}

func (q *Queries) DeleteRecurring(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM recurring_transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurring transaction: %w", err)
	}
	return expectOne(res, "recurring transaction", id)
}

func (q *Queries) AdvanceRecurring(ctx context.Context, id string, expectedNext, next, last time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET next_execute_at = ?, last_executed_at = ? WHERE id = ? AND next_execute_at = ?`,
		formatTime(next), formatTime(last), id, formatTime(expectedNext))
	if err != nil {
		return fmt.Errorf("advance recurring transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := q.GetRecurring(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("recurring transaction %s already advanced: %w", id, core.ErrConflict)
}

// Budgets

const budgetColumns = `id, category_id, period, currency, amount, year, month`

func scanBudget(row scanner) (core.Budget, error) {
	var (
		b      core.Budget
		amount string
	)
	if err := row.Scan(&b.ID, &b.CategoryID, &b.Period, &b.Currency, &amount, &b.Year, &b.Month); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Budget{}, fmt.Errorf("budget %s amount: %w", b.ID, err)
	}
	return b, nil
}

func (q *Queries) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY year DESC, month DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	b, err := scanBudget(q.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if err != nil {
		return core.Budget{}, notFoundOr(err, "budget", id)
	}
	return b, nil
}

func (q *Queries) InsertBudget(ctx context.Context, b core.Budget) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CategoryID, string(b.Period), b.Currency, b.Amount.String(), b.Year, b.Month)
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (q *Queries) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE budgets SET category_id = ?, period = ?, currency = ?, amount = ?, year = ?, month = ? WHERE id = ?`,
		b.CategoryID, string(b.Period), b.Currency, b.Amount.String(), b.Year, b.Month, b.ID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return expectOne(res, "budget", b.ID)
}

func (q *Queries) DeleteBudget(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return expectOne(res, "budget", id)
}

// Exchange rates and preferences

func (q *Queries) GetRate(ctx context.Context, base, quote string) (core.ExchangeRate, error) {
	var rate, updated string
	err := q.db.QueryRowContext(ctx,
		`SELECT rate, updated_at FROM exchange_rates WHERE base = ? AND quote = ?`, base, quote).Scan(&rate, &updated)
	if err != nil {
		return core.ExchangeRate{}, notFoundOr(err, "exchange rate", base+"/"+quote)
	}
	r := core.ExchangeRate{Base: base, Quote: quote}
	if r.Rate, err = decimal.NewFromString(rate); err != nil {
		return core.ExchangeRate{}, fmt.Errorf("exchange rate %s/%s: %w", base, quote, err)
	}
	if r.UpdatedAt, err = parseTime(updated); err != nil {
		return core.ExchangeRate{}, err
	}
	return r, nil
}

func (q *Queries) PutRate(ctx context.Context, r core.ExchangeRate) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO exchange_rates (base, quote, rate, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(base, quote) DO UPDATE SET rate = excluded.rate, updated_at = excluded.updated_at`,
		r.Base, r.Quote, r.Rate.String(), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put exchange rate: %w", err)
	}
	return nil
}

func (q *Queries) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", notFoundOr(err, "preference", key)
	}
	return value, nil
}

func (q *Queries) SetPreference(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}
