// Package services holds the business rules of the simulation: the stock
// catalog, accounts, trading and portfolio valuation. Persistence is reached
// through database.Repository; every other collaborator is optional.
package services

import (
	"context"
	"time"

	"stock-trader/messaging"
	"stock-trader/models"
)

// StockCache caches the full catalog keyed by a version that every write
// bumps.
type StockCache interface {
	Version(ctx context.Context) (int64, error)
	Stocks(ctx context.Context, version int64) ([]models.Stock, bool, error)
	SetStocks(ctx context.Context, version int64, stocks []models.Stock) error
	Invalidate(ctx context.Context) error
}

// TokenStore persists refresh tokens.
type TokenStore interface {
	Save(ctx context.Context, token string, userID uint, ttl time.Duration) error
	// Redeem atomically removes token and returns its user.
	Redeem(ctx context.Context, token string) (uint, error)
}

// TradePublisher announces committed trades.
type TradePublisher interface {
	PublishTrade(ctx context.Context, event messaging.TradeEvent) error
}

// TradeRecorder receives trade counters.
type TradeRecorder interface {
	TradeExecuted(kind string, value float64)
	TradeFailed(kind, reason string)
}

type nopRecorder struct{}

func (nopRecorder) TradeExecuted(string, float64) {}
func (nopRecorder) TradeFailed(string, string)    {}
