package database

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"stock-trader/models"
)

type StockRepository interface {
	ListStocks(ctx context.Context) ([]models.Stock, error)
	FindStockByID(ctx context.Context, id uint) (*models.Stock, error)
	FindStockBySymbol(ctx context.Context, symbol string) (*models.Stock, error)
	SearchStocks(ctx context.Context, query string) ([]models.Stock, error)
	CreateStock(ctx context.Context, stock *models.Stock) error
	SaveStock(ctx context.Context, stock *models.Stock) error
	DeleteStock(ctx context.Context, id uint) error
	StockReferenced(ctx context.Context, id uint) (bool, error)
	AppendPrice(ctx context.Context, price *models.StockPrice) error
	PriceHistory(ctx context.Context, stockID uint, limit int) ([]models.StockPrice, error)
}

func (s *Store) ListStocks(ctx context.Context) ([]models.Stock, error) {
	var stocks []models.Stock
	if err := s.db.WithContext(ctx).Order("symbol").Find(&stocks).Error; err != nil {
		return nil, fmt.Errorf("listing stocks: %w", err)
	}
	return stocks, nil
}

func (s *Store) FindStockByID(ctx context.Context, id uint) (*models.Stock, error) {
	var stock models.Stock
	if err := s.db.WithContext(ctx).First(&stock, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &stock, nil
}

func (s *Store) FindStockBySymbol(ctx context.Context, symbol string) (*models.Stock, error) {
	var stock models.Stock
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&stock).Error; err != nil {
		return nil, notFound(err)
	}
	return &stock, nil
}

// SearchStocks matches query case-insensitively as a substring of the symbol
// or the company name.
func (s *Store) SearchStocks(ctx context.Context, query string) ([]models.Stock, error) {
	pattern := "%" + escapeLike(query) + "%"
	var stocks []models.Stock
	err := s.db.WithContext(ctx).
		Where("symbol ILIKE ? OR company_name ILIKE ?", pattern, pattern).
		Order("symbol").
		Find(&stocks).Error
	if err != nil {
		return nil, fmt.Errorf("searching stocks: %w", err)
	}
	return stocks, nil
}

func (s *Store) CreateStock(ctx context.Context, stock *models.Stock) error {
	return duplicate(s.db.WithContext(ctx).Create(stock).Error)
}

func (s *Store) SaveStock(ctx context.Context, stock *models.Stock) error {
	return s.db.WithContext(ctx).Save(stock).Error
}

func (s *Store) DeleteStock(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Stock{}, id)
	if res.Error != nil {
		return fmt.Errorf("deleting stock %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// StockReferenced reports whether any position or ledger row points at the stock.
func (s *Store) StockReferenced(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.PortfolioEntry{}).Where("stock_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("stock_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) AppendPrice(ctx context.Context, price *models.StockPrice) error {
	return s.db.WithContext(ctx).Create(price).Error
}

func (s *Store) PriceHistory(ctx context.Context, stockID uint, limit int) ([]models.StockPrice, error) {
	var prices []models.StockPrice
	err := s.db.WithContext(ctx).
		Where("stock_id = ?", stockID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Limit(limit).
		Find(&prices).Error
	if err != nil {
		return nil, fmt.Errorf("loading price history: %w", err)
	}
	return prices, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
