package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"stock-trader/models"
)

type seedStock struct {
	Symbol        string  `yaml:"symbol"`
	CompanyName   string  `yaml:"companyName"`
	Price         float64 `yaml:"price"`
	PreviousClose float64 `yaml:"previousClose"`
}

// LoadSeedFile reads a YAML list of stocks.
func LoadSeedFile(path string) ([]models.Stock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data, time.Now())
}

// ParseSeed decodes the YAML seed format into catalog entries.
func ParseSeed(data []byte, now time.Time) ([]models.Stock, error) {
	var doc struct {
		Stocks []seedStock `yaml:"stocks"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	stocks := make([]models.Stock, 0, len(doc.Stocks))
	for i, s := range doc.Stocks {
		if s.Symbol == "" || s.CompanyName == "" || s.Price <= 0 {
			return nil, fmt.Errorf("seed stock %d: symbol, companyName and a positive price are required", i)
		}
		price, prevClose := decimal.NewFromFloat(s.Price), decimal.NewFromFloat(s.PreviousClose)
		if !models.FitsScale(price, models.PriceScale) || !models.FitsScale(prevClose, models.PriceScale) {
			return nil, fmt.Errorf("seed stock %s: prices can have at most %d decimal places", s.Symbol, models.PriceScale)
		}
		stock := models.NewStock(s.Symbol, s.CompanyName, price, prevClose, now)
		stocks = append(stocks, *stock)
	}
	return stocks, nil
}

// SeedStocks inserts stocks that are not in the catalog yet and gives each
// seeded stock without history its opening price point.
func (s *Store) SeedStocks(ctx context.Context, stocks []models.Stock) error {
	if len(stocks) == 0 {
		return nil
	}
	if err := s.CreateInBatches(ctx, stocks, 100); err != nil {
		return err
	}
	symbols := make([]string, len(stocks))
	for i, st := range stocks {
		symbols[i] = st.Symbol
	}
	return s.seedPriceHistory(ctx, symbols)
}

const seedHistorySQL = `INSERT INTO stock_prices (created_at, updated_at, stock_id, symbol, price, timestamp)
SELECT now(), now(), s.id, s.symbol, s.price, s.last_updated FROM stocks s
WHERE s.symbol IN ? AND NOT EXISTS (SELECT 1 FROM stock_prices p WHERE p.stock_id = s.id)`

func (s *Store) seedPriceHistory(ctx context.Context, symbols []string) error {
	if err := s.db.WithContext(ctx).Exec(seedHistorySQL, symbols).Error; err != nil {
		return fmt.Errorf("seeding price history: %w", err)
	}
	return nil
}
