package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"stock-trader/models"
)

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	// ListTransactions returns the user's ledger, newest first.
	ListTransactions(ctx context.Context, userID uint) ([]models.Transaction, error)
}

func (s *Store) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := s.db.WithContext(ctx).Omit("Stock").Create(txn).Error; err != nil {
		return fmt.Errorf("recording transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.db.WithContext(ctx).
		Preload("Stock", func(db *gorm.DB) *gorm.DB { return db.Select("id", "symbol", "company_name") }).
		Where("user_id = ?", userID).
		Order("date DESC, id DESC").
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return txns, nil
}
