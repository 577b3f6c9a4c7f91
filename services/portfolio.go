package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"stock-trader/apperrors"
	"stock-trader/database"
	"stock-trader/models"
)

var hundred = decimal.NewFromInt(100)

// Holding is a portfolio entry valued at the current stock price.
type Holding struct {
	models.PortfolioEntry
	CurrentValue      decimal.Decimal `json:"currentValue"`
	ProfitLoss        decimal.Decimal `json:"profitLoss"`
	ProfitLossPercent decimal.Decimal `json:"profitLossPercent"`
}

// PortfolioValuation is the portfolio with per-position and total valuations.
type PortfolioValuation struct {
	ID                     uint            `json:"id"`
	UserID                 uint            `json:"user"`
	Stocks                 []Holding       `json:"stocks"`
	UpdatedAt              time.Time       `json:"updatedAt"`
	TotalCurrentValue      decimal.Decimal `json:"totalCurrentValue"`
	TotalInvestment        decimal.Decimal `json:"totalInvestment"`
	TotalProfitLoss        decimal.Decimal `json:"totalProfitLoss"`
	TotalProfitLossPercent decimal.Decimal `json:"totalProfitLossPercent"`
}

type PortfolioService struct {
	repo database.Repository
}

func NewPortfolioService(repo database.Repository) *PortfolioService {
	return &PortfolioService{repo: repo}
}

// Get values the user's portfolio, creating an empty one on first access.
func (s *PortfolioService) Get(ctx context.Context, userID uint) (*PortfolioValuation, error) {
	portfolio, err := s.repo.FindPortfolio(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		portfolio = &models.Portfolio{UserID: userID}
		err = s.repo.CreatePortfolio(ctx, portfolio)
		if errors.Is(err, database.ErrDuplicate) {
			// Created concurrently by a first trade.
			portfolio, err = s.repo.FindPortfolio(ctx, userID)
		}
	}
	if err != nil {
		return nil, apperrors.Internal("loading portfolio", err)
	}
	valuation := Value(portfolio)
	return &valuation, nil
}

// Value computes current value and profit/loss for every position and for the
// whole portfolio. Percentages are 0 when nothing is invested.
func Value(p *models.Portfolio) PortfolioValuation {
	v := PortfolioValuation{
		ID:        p.ID,
		UserID:    p.UserID,
		UpdatedAt: p.UpdatedAt,
		Stocks:    make([]Holding, 0, len(p.Entries)),
	}
	for _, entry := range p.Entries {
		h := Holding{PortfolioEntry: entry}
		if entry.Stock != nil {
			h.CurrentValue = entry.Quantity.Mul(entry.Stock.Price)
		} else {
			h.CurrentValue = entry.TotalInvestment
		}
		h.ProfitLoss = h.CurrentValue.Sub(entry.TotalInvestment)
		h.ProfitLossPercent = percentOf(h.ProfitLoss, entry.TotalInvestment)
		v.Stocks = append(v.Stocks, h)

		v.TotalCurrentValue = v.TotalCurrentValue.Add(h.CurrentValue)
		v.TotalInvestment = v.TotalInvestment.Add(entry.TotalInvestment)
	}
	v.TotalProfitLoss = v.TotalCurrentValue.Sub(v.TotalInvestment)
	v.TotalProfitLossPercent = percentOf(v.TotalProfitLoss, v.TotalInvestment)
	return v
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, 4)
}
