package models

import "github.com/shopspring/decimal"

// Scale is the number of decimal places persisted for prices, quantities and
// money (numeric(20,8) columns).
const Scale = 8

// Prices and trade quantities accept at most four decimal places each, so
// price * quantity always fits Scale exactly.
const (
	PriceScale    = 4
	QuantityScale = 4
)

func init() {
	// Money is rendered as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// FitsScale reports whether d has no non-zero digits past places decimals.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// All lists every model for migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Stock{},
		&StockPrice{},
		&Portfolio{},
		&PortfolioEntry{},
		&Transaction{},
	}
}
