package financial

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency used to format amounts when none is
// configured. Amounts themselves are plain signed decimals; currency only
// matters at the presentation edge (exports and reports).
const DefaultCurrency = "USD"

// Money pairs a decimal amount with a currency, for formatting only.
type Money struct {
	value decimal.Decimal
	cur   string
}

// M wraps an amount in a Money with the given currency. An empty currency
// falls back to DefaultCurrency.
func M(value decimal.Decimal, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{value: value, cur: currency}
}

// currency returns the money's full currency definition.
func (m Money) currency() money.Currency {
	// to get a never nil currency we need to go through the Money constructor
	return *money.New(0, m.cur).Currency()
}

// String returns the locale-aware representation of the money value, e.g. "-$50.00".
func (m Money) String() string {
	cur := m.currency()
	dec := m.value.Shift(int32(cur.Fraction))
	return cur.Formatter().Format(dec.IntPart())
}

// SignedString is like String but prefixes positive values with '+' and
// renders zero as "-".
func (m Money) SignedString() string {
	if m.value.IsZero() {
		return "-"
	}
	if m.value.IsPositive() {
		return "+" + m.String()
	}
	return m.String()
}

func (m Money) Currency() string	{ return m.cur }
func (m Money) IsZero() bool		{ return m.value.IsZero() }
func (m Money) IsNegative() bool	{ return m.value.IsNegative() }
func (m Money) Neg() Money		{ return Money{value: m.value.Neg(), cur: m.cur} }
func (m Money) Add(n Money) Money	{ return Money{value: m.value.Add(n.value), cur: m.cur} }
func (m Money) Equal(n Money) bool	{ return m.value.Equal(n.value) && m.cur == n.cur }
func (m Money) Amount() decimal.Decimal	{ return m.value }
