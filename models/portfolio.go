package models

import (
	"time"

	"github.com/shopspring/decimal"

	"stock-trader/apperrors"
)

// Portfolio is the single holdings record of a user.
type Portfolio struct {
	ID        uint             `gorm:"primarykey" json:"id"`
	UserID    uint             `gorm:"uniqueIndex;not null" json:"user"`
	Entries   []PortfolioEntry `gorm:"foreignKey:PortfolioID" json:"stocks"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// PortfolioEntry is a position in one stock. Quantity is always positive;
// TotalInvestment tracks Quantity * AverageBuyPrice incrementally.
type PortfolioEntry struct {
	ID              uint            `gorm:"primarykey" json:"id"`
	PortfolioID     uint            `gorm:"uniqueIndex:idx_portfolio_stock;not null" json:"-"`
	StockID         uint            `gorm:"uniqueIndex:idx_portfolio_stock;not null" json:"stockId"`
	Stock           *Stock          `json:"stock,omitempty"`
	Symbol          string          `gorm:"size:16;not null" json:"symbol"`
	Quantity        decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"quantity"`
	AverageBuyPrice decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"averageBuyPrice"`
	TotalInvestment decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"totalInvestment"`
}

// Entry returns the position in stockID, if any.
func (p *Portfolio) Entry(stockID uint) (*PortfolioEntry, bool) {
	if i := p.indexOf(stockID); i >= 0 {
		return &p.Entries[i], true
	}
	return nil, false
}

func (p *Portfolio) indexOf(stockID uint) int {
	for i := range p.Entries {
		if p.Entries[i].StockID == stockID {
			return i
		}
	}
	return -1
}

// Buy adds quantity shares of stock acquired for cost, re-averaging the
// position's buy price.
func (p *Portfolio) Buy(stock *Stock, quantity, cost decimal.Decimal) PortfolioEntry {
	if e, ok := p.Entry(stock.ID); ok {
		e.TotalInvestment = e.TotalInvestment.Add(cost)
		e.Quantity = e.Quantity.Add(quantity)
		e.AverageBuyPrice = e.TotalInvestment.DivRound(e.Quantity, Scale)
		return *e
	}

	p.Entries = append(p.Entries, PortfolioEntry{
		PortfolioID:     p.ID,
		StockID:         stock.ID,
		Symbol:          stock.Symbol,
		Quantity:        quantity,
		AverageBuyPrice: stock.Price,
		TotalInvestment: cost,
	})
	return p.Entries[len(p.Entries)-1]
}

// Sell removes quantity shares from the position in stockID. The average buy
// price is unchanged; cost basis is released proportionally. closed reports
// that the position reached zero and was dropped from Entries.
func (p *Portfolio) Sell(stockID uint, quantity decimal.Decimal) (entry PortfolioEntry, closed bool, err error) {
	i := p.indexOf(stockID)
	if i < 0 {
		return PortfolioEntry{}, false, apperrors.ErrStockNotOwned
	}
	e := &p.Entries[i]
	if e.Quantity.LessThan(quantity) {
		return PortfolioEntry{}, false, apperrors.ErrInsufficientShares
	}

	e.Quantity = e.Quantity.Sub(quantity)
	e.TotalInvestment = e.TotalInvestment.Sub(e.AverageBuyPrice.Mul(quantity)).Round(Scale)

	entry = *e
	if e.Quantity.IsZero() {
		p.Entries = append(p.Entries[:i], p.Entries[i+1:]...)
		return entry, true, nil
	}
	return entry, false, nil
}
