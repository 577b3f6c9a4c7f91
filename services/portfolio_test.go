package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-trader/database/dbtest"
	"stock-trader/models"
)

func TestGetCreatesEmptyPortfolio(t *testing.T) {
	ctx := context.Background()
	mem := dbtest.NewMemory()
	user := seedUser(t, mem, "100")
	svc := NewPortfolioService(mem)

	v, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.NotZero(t, v.ID)
	assert.Equal(t, user.ID, v.UserID)
	assert.Empty(t, v.Stocks)
	assert.True(t, v.TotalCurrentValue.IsZero())
	assert.True(t, v.TotalProfitLossPercent.IsZero())

	again, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, again.ID)
}

func TestGetValuesAtCurrentPrices(t *testing.T) {
	ctx := context.Background()
	mem := dbtest.NewMemory()
	user := seedUser(t, mem, "10000")
	aapl := seedStock(t, mem, "AAPL", "100")
	tsla := seedStock(t, mem, "TSLA", "200")
	trading, _, _ := newTrading(mem)

	_, err := trading.Buy(ctx, TradeRequest{UserID: user.ID, StockID: aapl.ID, Quantity: d("10")})
	require.NoError(t, err)
	_, err = trading.Buy(ctx, TradeRequest{UserID: user.ID, StockID: tsla.ID, Quantity: d("5")})
	require.NoError(t, err)
	setPrice(t, mem, aapl, "120")
	setPrice(t, mem, tsla, "180")

	v, err := NewPortfolioService(mem).Get(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, v.Stocks, 2)

	apple := v.Stocks[0]
	assert.Equal(t, "AAPL", apple.Symbol)
	assertDecimal(t, "1200", apple.CurrentValue)
	assertDecimal(t, "200", apple.ProfitLoss)
	assertDecimal(t, "20", apple.ProfitLossPercent)

	tesla := v.Stocks[1]
	assertDecimal(t, "900", tesla.CurrentValue)
	assertDecimal(t, "-100", tesla.ProfitLoss)
	assertDecimal(t, "-10", tesla.ProfitLossPercent)

	assertDecimal(t, "2100", v.TotalCurrentValue)
	assertDecimal(t, "2000", v.TotalInvestment)
	assertDecimal(t, "100", v.TotalProfitLoss)
	assertDecimal(t, "5", v.TotalProfitLossPercent)
}

func TestValueGuardsZeroInvestment(t *testing.T) {
	v := Value(&models.Portfolio{
		Entries: []models.PortfolioEntry{{
			StockID:         1,
			Quantity:        d("3"),
			TotalInvestment: d("0"),
			Stock:           &models.Stock{ID: 1, Price: d("10")},
		}},
	})

	require.Len(t, v.Stocks, 1)
	assertDecimal(t, "30", v.Stocks[0].CurrentValue)
	assert.True(t, v.Stocks[0].ProfitLossPercent.IsZero())
	assert.True(t, v.TotalProfitLossPercent.IsZero())
}

func TestValueWithoutLoadedStockUsesCostBasis(t *testing.T) {
	v := Value(&models.Portfolio{
		Entries: []models.PortfolioEntry{{StockID: 1, Quantity: d("2"), TotalInvestment: d("50")}},
	})

	assertDecimal(t, "50", v.Stocks[0].CurrentValue)
	assert.True(t, v.Stocks[0].ProfitLoss.IsZero())
}
