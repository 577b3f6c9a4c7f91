package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type Stock struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	Symbol        string          `gorm:"size:16;uniqueIndex;not null" json:"symbol"`
	CompanyName   string          `gorm:"not null" json:"companyName"`
	Price         decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"price"`
	PreviousClose decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"previousClose"`
	Change        decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"change"`
	ChangePercent decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"changePercent"`
	LastUpdated   time.Time       `json:"lastUpdated"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewStock builds a catalog entry with derived day-change fields.
func NewStock(symbol, companyName string, price, previousClose decimal.Decimal, now time.Time) *Stock {
	s := &Stock{
		Symbol:        NormalizeSymbol(symbol),
		CompanyName:   strings.TrimSpace(companyName),
		Price:         price,
		PreviousClose: previousClose,
		LastUpdated:   now,
	}
	s.recompute()
	return s
}

// UpdatePrice moves the current price into previousClose and sets a new one.
func (s *Stock) UpdatePrice(price decimal.Decimal, now time.Time) {
	s.PreviousClose = s.Price
	s.Price = price
	s.LastUpdated = now
	s.recompute()
}

func (s *Stock) recompute() {
	s.Change = s.Price.Sub(s.PreviousClose)
	if s.PreviousClose.IsZero() {
		s.ChangePercent = decimal.Zero
		return
	}
	s.ChangePercent = s.Change.Mul(hundred).DivRound(s.PreviousClose, Scale)
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// StockPrice is one observed price of a stock, appended on every price change.
type StockPrice struct {
	gorm.Model
	StockID   uint            `gorm:"index" json:"stockId"`
	Symbol    string          `gorm:"index" json:"symbol"`
	Price     decimal.Decimal `gorm:"type:numeric(20,8)" json:"price"`
	Timestamp time.Time       `gorm:"index" json:"timestamp"`
}
