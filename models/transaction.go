package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	Buy  TransactionType = "buy"
	Sell TransactionType = "sell"
)

// Transaction is an append-only ledger row. It is never updated or deleted.
type Transaction struct {
	ID       uint            `gorm:"primarykey" json:"id"`
	UserID   uint            `gorm:"index;not null" json:"userId"`
	StockID  uint            `gorm:"index;not null" json:"stockId"`
	Stock    *Stock          `json:"stock,omitempty"`
	Symbol   string          `gorm:"size:16;not null" json:"symbol"`
	Type     TransactionType `gorm:"size:4;not null" json:"type"`
	Quantity decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"quantity"`
	Price    decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"price"`
	Total    decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"total"`
	Date     time.Time       `gorm:"index;not null" json:"date"`
}

// NewTransaction records a trade of quantity shares at the stock's current
// price; total is price * quantity held at Scale.
func NewTransaction(userID uint, stock *Stock, kind TransactionType, quantity decimal.Decimal, now time.Time) *Transaction {
	return &Transaction{
		UserID:   userID,
		StockID:  stock.ID,
		Symbol:   stock.Symbol,
		Type:     kind,
		Quantity: quantity,
		Price:    stock.Price,
		Total:    stock.Price.Mul(quantity).Round(Scale),
		Date:     now,
	}
}
