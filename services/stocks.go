package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock-trader/apperrors"
	"stock-trader/database"
	"stock-trader/logger"
	"stock-trader/models"
)

const defaultHistoryLimit = 30

var errPricePrecision = apperrors.Validation("Prices can have at most 4 decimal places")

// NewStockInput is the admin payload for adding a stock to the catalog.
type NewStockInput struct {
	Symbol        string
	CompanyName   string
	Price         decimal.Decimal
	PreviousClose decimal.Decimal
}

// StockService serves the catalog. Reads of the full list go through the
// cache when one is configured; every write invalidates it.
type StockService struct {
	repo  database.Repository
	cache StockCache
	now   func() time.Time
}

func NewStockService(repo database.Repository, cache StockCache) *StockService {
	return &StockService{repo: repo, cache: cache, now: time.Now}
}

func (s *StockService) List(ctx context.Context) ([]models.Stock, error) {
	if s.cache == nil {
		return s.listStocks(ctx)
	}
	version, err := s.cache.Version(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("reading stock cache version", "error", err)
		return s.listStocks(ctx)
	}
	stocks, ok, err := s.cache.Stocks(ctx, version)
	if err != nil {
		logger.FromContext(ctx).Warn("reading stock cache", "error", err)
	} else if ok {
		return stocks, nil
	}
	return s.load(ctx, version)
}

// RefreshCache reloads the catalog into the cache.
func (s *StockService) RefreshCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	version, err := s.cache.Version(ctx)
	if err != nil {
		return apperrors.Internal("reading stock cache version", err)
	}
	_, err = s.load(ctx, version)
	return err
}

// load reads the catalog and caches it under the version observed before
// the read. A write that lands in between bumps the version, so the
// possibly stale list is never served.
func (s *StockService) load(ctx context.Context, version int64) ([]models.Stock, error) {
	stocks, err := s.listStocks(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetStocks(ctx, version, stocks); err != nil {
		logger.FromContext(ctx).Warn("writing stock cache", "error", err)
	}
	return stocks, nil
}

func (s *StockService) listStocks(ctx context.Context) ([]models.Stock, error) {
	stocks, err := s.repo.ListStocks(ctx)
	if err != nil {
		return nil, apperrors.Internal("listing stocks", err)
	}
	if stocks == nil {
		stocks = []models.Stock{}
	}
	return stocks, nil
}

func (s *StockService) GetBySymbol(ctx context.Context, symbol string) (*models.Stock, error) {
	stock, err := s.repo.FindStockBySymbol(ctx, models.NormalizeSymbol(symbol))
	if err != nil {
		return nil, mapNotFound(err, apperrors.ErrStockNotFound, "loading stock")
	}
	return stock, nil
}

// Search matches query against symbol or company name, ignoring case.
func (s *StockService) Search(ctx context.Context, query string) ([]models.Stock, error) {
	stocks, err := s.repo.SearchStocks(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, apperrors.Internal("searching stocks", err)
	}
	if stocks == nil {
		stocks = []models.Stock{}
	}
	return stocks, nil
}

func (s *StockService) Create(ctx context.Context, in NewStockInput) (*models.Stock, error) {
	if models.NormalizeSymbol(in.Symbol) == "" || strings.TrimSpace(in.CompanyName) == "" {
		return nil, apperrors.Validation("Symbol and company name are required")
	}
	if !in.Price.IsPositive() || in.PreviousClose.IsNegative() {
		return nil, apperrors.Validation("Price must be positive and previous close must not be negative")
	}
	if !models.FitsScale(in.Price, models.PriceScale) || !models.FitsScale(in.PreviousClose, models.PriceScale) {
		return nil, errPricePrecision
	}

	now := s.now()
	stock := models.NewStock(in.Symbol, in.CompanyName, in.Price, in.PreviousClose, now)
	err := s.repo.InTx(ctx, func(repo database.Repository) error {
		if err := repo.CreateStock(ctx, stock); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return apperrors.ErrSymbolTaken
			}
			return apperrors.Internal("creating stock", err)
		}
		return appendPrice(ctx, repo, stock)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return stock, nil
}

// UpdatePrice sets a new price; the old one becomes previousClose and the
// day-change fields are recomputed.
func (s *StockService) UpdatePrice(ctx context.Context, id uint, price decimal.Decimal) (*models.Stock, error) {
	if !price.IsPositive() {
		return nil, apperrors.Validation("Price must be positive")
	}
	if !models.FitsScale(price, models.PriceScale) {
		return nil, errPricePrecision
	}

	var stock *models.Stock
	err := s.repo.InTx(ctx, func(repo database.Repository) error {
		var err error
		stock, err = repo.FindStockByID(ctx, id)
		if err != nil {
			return mapNotFound(err, apperrors.ErrStockNotFound, "loading stock")
		}
		stock.UpdatePrice(price, s.now())
		if err := repo.SaveStock(ctx, stock); err != nil {
			return apperrors.Internal("saving stock", err)
		}
		return appendPrice(ctx, repo, stock)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return stock, nil
}

// History returns up to limit recorded prices of symbol, newest first.
func (s *StockService) History(ctx context.Context, symbol string, limit int) ([]models.StockPrice, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultHistoryLimit
	}
	stock, err := s.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	prices, err := s.repo.PriceHistory(ctx, stock.ID, limit)
	if err != nil {
		return nil, apperrors.Internal("loading price history", err)
	}
	if prices == nil {
		prices = []models.StockPrice{}
	}
	return prices, nil
}

// Delete removes a stock that no portfolio or transaction refers to.
func (s *StockService) Delete(ctx context.Context, id uint) error {
	err := s.repo.InTx(ctx, func(repo database.Repository) error {
		if _, err := repo.FindStockByID(ctx, id); err != nil {
			return mapNotFound(err, apperrors.ErrStockNotFound, "loading stock")
		}
		used, err := repo.StockReferenced(ctx, id)
		if err != nil {
			return apperrors.Internal("checking stock references", err)
		}
		if used {
			return apperrors.ErrStockInUse
		}
		if err := repo.DeleteStock(ctx, id); err != nil {
			return mapNotFound(err, apperrors.ErrStockNotFound, "deleting stock")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *StockService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.FromContext(ctx).Warn("invalidating stock cache", "error", err)
	}
}

func appendPrice(ctx context.Context, repo database.Repository, stock *models.Stock) error {
	err := repo.AppendPrice(ctx, &models.StockPrice{
		StockID:   stock.ID,
		Symbol:    stock.Symbol,
		Price:     stock.Price,
		Timestamp: stock.LastUpdated,
	})
	if err != nil {
		return apperrors.Internal("recording price", err)
	}
	return nil
}
