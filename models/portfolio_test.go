package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-trader/apperrors"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestBuyAveragesPrice(t *testing.T) {
	p := &Portfolio{ID: 1, UserID: 7}
	stock := &Stock{ID: 3, Symbol: "AAPL", Price: d("100")}

	entry := p.Buy(stock, d("5"), d("500"))
	assertDecimal(t, "5", entry.Quantity)
	assertDecimal(t, "100", entry.AverageBuyPrice)
	assertDecimal(t, "500", entry.TotalInvestment)
	assert.Equal(t, uint(1), entry.PortfolioID)
	assert.Equal(t, "AAPL", entry.Symbol)

	stock.Price = d("120")
	entry = p.Buy(stock, d("5"), d("600"))
	assertDecimal(t, "10", entry.Quantity)
	assertDecimal(t, "110", entry.AverageBuyPrice)
	assertDecimal(t, "1100", entry.TotalInvestment)
	require.Len(t, p.Entries, 1)
}

func TestBuyRoundsAverageToScale(t *testing.T) {
	p := &Portfolio{}
	stock := &Stock{ID: 1, Symbol: "X", Price: d("1")}
	p.Buy(stock, d("1"), d("1"))
	entry := p.Buy(stock, d("2"), d("1"))

	assertDecimal(t, "0.66666667", entry.AverageBuyPrice)
	assertDecimal(t, "2", entry.TotalInvestment)
}

func TestSellKeepsAveragePrice(t *testing.T) {
	p := &Portfolio{}
	stock := &Stock{ID: 3, Symbol: "AAPL", Price: d("100")}
	p.Buy(stock, d("5"), d("500"))
	p.Buy(stock, d("5"), d("600"))

	entry, closed, err := p.Sell(3, d("4"))
	require.NoError(t, err)
	assert.False(t, closed)
	assertDecimal(t, "6", entry.Quantity)
	assertDecimal(t, "110", entry.AverageBuyPrice)
	assertDecimal(t, "660", entry.TotalInvestment)

	held, ok := p.Entry(3)
	require.True(t, ok)
	assertDecimal(t, "6", held.Quantity)
}

func TestSellWholePositionClosesEntry(t *testing.T) {
	p := &Portfolio{}
	p.Buy(&Stock{ID: 1, Symbol: "A", Price: d("10")}, d("2"), d("20"))
	p.Buy(&Stock{ID: 2, Symbol: "B", Price: d("5")}, d("1"), d("5"))

	entry, closed, err := p.Sell(1, d("2"))
	require.NoError(t, err)
	assert.True(t, closed)
	assert.True(t, entry.Quantity.IsZero())

	_, ok := p.Entry(1)
	assert.False(t, ok)
	require.Len(t, p.Entries, 1)
	assert.Equal(t, uint(2), p.Entries[0].StockID)
}

func TestSellRejections(t *testing.T) {
	p := &Portfolio{}
	p.Buy(&Stock{ID: 1, Symbol: "A", Price: d("10")}, d("2"), d("20"))

	_, _, err := p.Sell(9, d("1"))
	assert.ErrorIs(t, err, apperrors.ErrStockNotOwned)

	_, _, err = p.Sell(1, d("3"))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientShares)

	held, _ := p.Entry(1)
	assertDecimal(t, "2", held.Quantity)
	assertDecimal(t, "20", held.TotalInvestment)
}

func TestNewTransactionTotal(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stock := &Stock{ID: 4, Symbol: "MSFT", Price: d("412.37")}

	txn := NewTransaction(9, stock, Sell, d("2.5"), now)
	assert.Equal(t, uint(9), txn.UserID)
	assert.Equal(t, uint(4), txn.StockID)
	assert.Equal(t, "MSFT", txn.Symbol)
	assert.Equal(t, Sell, txn.Type)
	assertDecimal(t, "412.37", txn.Price)
	assertDecimal(t, "1030.925", txn.Total)
	assert.Equal(t, now, txn.Date)
}
