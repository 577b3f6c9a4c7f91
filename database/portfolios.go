package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock-trader/models"
)

type PortfolioRepository interface {
	// FindPortfolio loads the user's portfolio with its entries and their stocks.
	FindPortfolio(ctx context.Context, userID uint) (*models.Portfolio, error)
	CreatePortfolio(ctx context.Context, portfolio *models.Portfolio) error
	SaveEntry(ctx context.Context, entry *models.PortfolioEntry) error
	DeleteEntry(ctx context.Context, portfolioID, stockID uint) error
	TouchPortfolio(ctx context.Context, portfolio *models.Portfolio, at time.Time) error
}

func (s *Store) FindPortfolio(ctx context.Context, userID uint) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	err := s.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("symbol") }).
		Preload("Entries.Stock").
		Where("user_id = ?", userID).
		First(&portfolio).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &portfolio, nil
}

func (s *Store) CreatePortfolio(ctx context.Context, portfolio *models.Portfolio) error {
	return duplicate(s.db.WithContext(ctx).Omit(clause.Associations).Create(portfolio).Error)
}

// SaveEntry inserts a new position or updates the quantities of an existing one.
func (s *Store) SaveEntry(ctx context.Context, entry *models.PortfolioEntry) error {
	db := s.db.WithContext(ctx).Omit(clause.Associations)
	var err error
	if entry.ID == 0 {
		err = db.Create(entry).Error
	} else {
		err = db.Model(entry).
			Select("quantity", "average_buy_price", "total_investment").
			Updates(entry).Error
	}
	if err != nil {
		return fmt.Errorf("saving %s position: %w", entry.Symbol, err)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, portfolioID, stockID uint) error {
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ? AND stock_id = ?", portfolioID, stockID).
		Delete(&models.PortfolioEntry{}).Error
	if err != nil {
		return fmt.Errorf("deleting position: %w", err)
	}
	return nil
}

func (s *Store) TouchPortfolio(ctx context.Context, portfolio *models.Portfolio, at time.Time) error {
	portfolio.UpdatedAt = at
	return s.db.WithContext(ctx).Model(portfolio).UpdateColumn("updated_at", at).Error
}
