package money

import (
	"fmt"
	"strconv"
)

// Currency represents an ISO 4217 currency code
type Currency string

const (
	SAR Currency = "SAR"
	AED Currency = "AED"
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
)

// CurrencyInfo contains metadata about a currency
type CurrencyInfo struct {
	Code        Currency
	MinorUnits  int // Number of decimal places
	Symbol      string
	SymbolFirst bool
}

var currencies = map[Currency]CurrencyInfo{
	SAR: {Code: SAR, MinorUnits: 2, Symbol: " SAR", SymbolFirst: false},
	AED: {Code: AED, MinorUnits: 2, Symbol: " AED", SymbolFirst: false},
	USD: {Code: USD, MinorUnits: 2, Symbol: "$", SymbolFirst: true},
	EUR: {Code: EUR, MinorUnits: 2, Symbol: "€", SymbolFirst: true},
	GBP: {Code: GBP, MinorUnits: 2, Symbol: "£", SymbolFirst: true},
	JPY: {Code: JPY, MinorUnits: 0, Symbol: "¥", SymbolFirst: true},
}

// Money represents a monetary amount in minor units (halalas, cents, etc.)
type Money struct {
	AmountMinor int64    `json:"amount_minor" validate:"gt=0"`
	Currency    Currency `json:"currency" validate:"required,len=3"`
}

// New creates a new Money value from minor units
func New(amountMinor int64, currency Currency) Money {
	return Money{
		AmountMinor: amountMinor,
		Currency:    currency,
	}
}

func (m Money) minorUnits() int {
	if info, ok := currencies[m.Currency]; ok {
		return info.MinorUnits
	}
	return 2
}

// Decimal formats the amount in major units with a fixed number of decimals ("12.50"),
// the representation card gateways expect. Integer arithmetic only.
func (m Money) Decimal() string {
	units := m.minorUnits()
	amount := m.AmountMinor
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if units == 0 {
		return sign + strconv.FormatInt(amount, 10)
	}

	div := int64(1)
	for i := 0; i < units; i++ {
		div *= 10
	}
	return fmt.Sprintf("%s%d.%0*d", sign, amount/div, units, amount%div)
}

// String returns a human-readable representation
func (m Money) String() string {
	info, ok := currencies[m.Currency]
	if !ok {
		return fmt.Sprintf("%d %s (minor)", m.AmountMinor, m.Currency)
	}
	if info.SymbolFirst {
		return info.Symbol + m.Decimal()
	}
	return m.Decimal() + info.Symbol
}
