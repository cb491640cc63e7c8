package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// MultiCurrencyAmount accumulates amounts per currency. No conversion is
// ever performed between currencies.
type MultiCurrencyAmount map[string]decimal.Decimal

func NewMultiCurrencyAmount() MultiCurrencyAmount {
	return make(MultiCurrencyAmount)
}

func (m MultiCurrencyAmount) Add(code string, amount decimal.Decimal) {
	m[code] = m[code].Add(amount)
}

// Merge adds every entry of other into m.
func (m MultiCurrencyAmount) Merge(other MultiCurrencyAmount) {
	for code, amount := range other {
		m.Add(code, amount)
	}
}

func (m MultiCurrencyAmount) Get(code string) decimal.Decimal {
	return m[code]
}

// Currencies returns the currency codes in lexical order.
func (m MultiCurrencyAmount) Currencies() []string {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// IsZero reports whether every accumulated amount is zero.
func (m MultiCurrencyAmount) IsZero() bool {
	for _, amount := range m {
		if !amount.IsZero() {
			return false
		}
	}
	return true
}
