// Package dbtest provides an in-memory database.Repository for tests.
package dbtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stock-trader/database"
	"stock-trader/models"
)

// Memory is an in-memory Repository. A single mutex serializes every call and
// every InTx block, and a failed InTx leaves no trace, which mirrors a
// database transaction with row locks closely enough for service tests.
// Stored decimals are rounded to models.Scale like numeric(20,8) columns.
type Memory struct {
	sh *shared
	tx *state // set inside InTx
}

type shared struct {
	mu    sync.Mutex
	st    *state
	fails map[string]error
}

type state struct {
	seq        uint
	stocks     map[uint]models.Stock
	prices     []models.StockPrice
	users      map[uint]models.User
	portfolios map[uint]models.Portfolio
	entries    map[uint]models.PortfolioEntry
	txns       []models.Transaction
}

var _ database.Repository = (*Memory)(nil)

func column(d decimal.Decimal) decimal.Decimal {
	return d.Round(models.Scale)
}

func stockRow(st models.Stock) models.Stock {
	st.Price = column(st.Price)
	st.PreviousClose = column(st.PreviousClose)
	st.Change = column(st.Change)
	st.ChangePercent = column(st.ChangePercent)
	return st
}

func NewMemory() *Memory {
	return &Memory{sh: &shared{
		st: &state{
			stocks:     map[uint]models.Stock{},
			users:      map[uint]models.User{},
			portfolios: map[uint]models.Portfolio{},
			entries:    map[uint]models.PortfolioEntry{},
		},
		fails: map[string]error{},
	}}
}

// FailOn makes every later call of the named method return err.
func (m *Memory) FailOn(method string, err error) {
	m.sh.mu.Lock()
	defer m.sh.mu.Unlock()
	m.sh.fails[method] = err
}

func (s *state) clone() *state {
	c := &state{
		seq:        s.seq,
		stocks:     make(map[uint]models.Stock, len(s.stocks)),
		prices:     append([]models.StockPrice(nil), s.prices...),
		users:      make(map[uint]models.User, len(s.users)),
		portfolios: make(map[uint]models.Portfolio, len(s.portfolios)),
		entries:    make(map[uint]models.PortfolioEntry, len(s.entries)),
		txns:       append([]models.Transaction(nil), s.txns...),
	}
	for k, v := range s.stocks {
		c.stocks[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.portfolios {
		c.portfolios[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	return c
}

func (s *state) nextID() uint {
	s.seq++
	return s.seq
}

// do runs fn against the current state, holding the lock outside of InTx.
func (m *Memory) do(method string, fn func(*state) error) error {
	if m.tx != nil {
		if err := m.sh.fails[method]; err != nil {
			return err
		}
		return fn(m.tx)
	}
	m.sh.mu.Lock()
	defer m.sh.mu.Unlock()
	if err := m.sh.fails[method]; err != nil {
		return err
	}
	return fn(m.sh.st)
}

func (m *Memory) InTx(ctx context.Context, fn func(database.Repository) error) error {
	if m.tx != nil {
		return fn(m)
	}
	m.sh.mu.Lock()
	defer m.sh.mu.Unlock()

	work := m.sh.st.clone()
	if err := fn(&Memory{sh: m.sh, tx: work}); err != nil {
		return err
	}
	m.sh.st = work
	return nil
}

// Stocks

func (m *Memory) ListStocks(ctx context.Context) ([]models.Stock, error) {
	var out []models.Stock
	err := m.do("ListStocks", func(s *state) error {
		for _, st := range s.stocks {
			out = append(out, st)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
		return nil
	})
	return out, err
}

func (m *Memory) FindStockByID(ctx context.Context, id uint) (*models.Stock, error) {
	var out *models.Stock
	err := m.do("FindStockByID", func(s *state) error {
		st, ok := s.stocks[id]
		if !ok {
			return database.ErrNotFound
		}
		out = &st
		return nil
	})
	return out, err
}

func (m *Memory) FindStockBySymbol(ctx context.Context, symbol string) (*models.Stock, error) {
	var out *models.Stock
	err := m.do("FindStockBySymbol", func(s *state) error {
		for _, st := range s.stocks {
			if st.Symbol == symbol {
				st := st
				out = &st
				return nil
			}
		}
		return database.ErrNotFound
	})
	return out, err
}

func (m *Memory) SearchStocks(ctx context.Context, query string) ([]models.Stock, error) {
	q := strings.ToLower(query)
	var out []models.Stock
	err := m.do("SearchStocks", func(s *state) error {
		for _, st := range s.stocks {
			if strings.Contains(strings.ToLower(st.Symbol), q) || strings.Contains(strings.ToLower(st.CompanyName), q) {
				out = append(out, st)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
		return nil
	})
	return out, err
}

func (m *Memory) CreateStock(ctx context.Context, stock *models.Stock) error {
	return m.do("CreateStock", func(s *state) error {
		for _, st := range s.stocks {
			if st.Symbol == stock.Symbol {
				return database.ErrDuplicate
			}
		}
		stock.ID = s.nextID()
		stock.CreatedAt = time.Now()
		s.stocks[stock.ID] = stockRow(*stock)
		return nil
	})
}

func (m *Memory) SaveStock(ctx context.Context, stock *models.Stock) error {
	return m.do("SaveStock", func(s *state) error {
		if _, ok := s.stocks[stock.ID]; !ok {
			return database.ErrNotFound
		}
		s.stocks[stock.ID] = stockRow(*stock)
		return nil
	})
}

func (m *Memory) DeleteStock(ctx context.Context, id uint) error {
	return m.do("DeleteStock", func(s *state) error {
		if _, ok := s.stocks[id]; !ok {
			return database.ErrNotFound
		}
		delete(s.stocks, id)
		return nil
	})
}

func (m *Memory) StockReferenced(ctx context.Context, id uint) (bool, error) {
	var used bool
	err := m.do("StockReferenced", func(s *state) error {
		for _, e := range s.entries {
			if e.StockID == id {
				used = true
				return nil
			}
		}
		for _, t := range s.txns {
			if t.StockID == id {
				used = true
				return nil
			}
		}
		return nil
	})
	return used, err
}

func (m *Memory) AppendPrice(ctx context.Context, price *models.StockPrice) error {
	return m.do("AppendPrice", func(s *state) error {
		price.ID = s.nextID()
		row := *price
		row.Price = column(row.Price)
		s.prices = append(s.prices, row)
		return nil
	})
}

func (m *Memory) PriceHistory(ctx context.Context, stockID uint, limit int) ([]models.StockPrice, error) {
	var out []models.StockPrice
	err := m.do("PriceHistory", func(s *state) error {
		for _, p := range s.prices {
			if p.StockID == stockID {
				out = append(out, p)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Timestamp.Equal(out[j].Timestamp) {
				return out[i].ID > out[j].ID
			}
			return out[i].Timestamp.After(out[j].Timestamp)
		})
		if len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

// Users

func (m *Memory) CreateUser(ctx context.Context, user *models.User) error {
	return m.do("CreateUser", func(s *state) error {
		for _, u := range s.users {
			if u.Email == user.Email {
				return database.ErrDuplicate
			}
		}
		user.ID = s.nextID()
		user.CreatedAt = time.Now()
		user.UpdatedAt = user.CreatedAt
		row := *user
		row.Balance = column(row.Balance)
		s.users[user.ID] = row
		return nil
	})
}

func (m *Memory) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	return m.findUser("FindUserByID", id)
}

func (m *Memory) LockUser(ctx context.Context, id uint) (*models.User, error) {
	return m.findUser("LockUser", id)
}

func (m *Memory) findUser(method string, id uint) (*models.User, error) {
	var out *models.User
	err := m.do(method, func(s *state) error {
		u, ok := s.users[id]
		if !ok {
			return database.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (m *Memory) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var out *models.User
	err := m.do("FindUserByEmail", func(s *state) error {
		for _, u := range s.users {
			if u.Email == email {
				u := u
				out = &u
				return nil
			}
		}
		return database.ErrNotFound
	})
	return out, err
}

func (m *Memory) SaveBalance(ctx context.Context, user *models.User) error {
	return m.do("SaveBalance", func(s *state) error {
		u, ok := s.users[user.ID]
		if !ok {
			return database.ErrNotFound
		}
		u.Balance = column(user.Balance)
		u.UpdatedAt = time.Now()
		s.users[user.ID] = u
		return nil
	})
}

// Portfolios

func (m *Memory) FindPortfolio(ctx context.Context, userID uint) (*models.Portfolio, error) {
	var out *models.Portfolio
	err := m.do("FindPortfolio", func(s *state) error {
		for _, p := range s.portfolios {
			if p.UserID != userID {
				continue
			}
			p.Entries = []models.PortfolioEntry{}
			for _, e := range s.entries {
				if e.PortfolioID != p.ID {
					continue
				}
				if st, ok := s.stocks[e.StockID]; ok {
					e.Stock = &st
				}
				p.Entries = append(p.Entries, e)
			}
			sort.Slice(p.Entries, func(i, j int) bool { return p.Entries[i].Symbol < p.Entries[j].Symbol })
			out = &p
			return nil
		}
		return database.ErrNotFound
	})
	return out, err
}

func (m *Memory) CreatePortfolio(ctx context.Context, portfolio *models.Portfolio) error {
	return m.do("CreatePortfolio", func(s *state) error {
		for _, p := range s.portfolios {
			if p.UserID == portfolio.UserID {
				return database.ErrDuplicate
			}
		}
		portfolio.ID = s.nextID()
		portfolio.CreatedAt = time.Now()
		portfolio.UpdatedAt = portfolio.CreatedAt
		stored := *portfolio
		stored.Entries = nil
		s.portfolios[portfolio.ID] = stored
		return nil
	})
}

func (m *Memory) SaveEntry(ctx context.Context, entry *models.PortfolioEntry) error {
	return m.do("SaveEntry", func(s *state) error {
		if _, ok := s.portfolios[entry.PortfolioID]; !ok {
			return database.ErrNotFound
		}
		if entry.ID == 0 {
			for _, e := range s.entries {
				if e.PortfolioID == entry.PortfolioID && e.StockID == entry.StockID {
					return database.ErrDuplicate
				}
			}
			entry.ID = s.nextID()
		} else if _, ok := s.entries[entry.ID]; !ok {
			return database.ErrNotFound
		}
		stored := *entry
		stored.Stock = nil
		stored.Quantity = column(stored.Quantity)
		stored.AverageBuyPrice = column(stored.AverageBuyPrice)
		stored.TotalInvestment = column(stored.TotalInvestment)
		s.entries[entry.ID] = stored
		return nil
	})
}

func (m *Memory) DeleteEntry(ctx context.Context, portfolioID, stockID uint) error {
	return m.do("DeleteEntry", func(s *state) error {
		for id, e := range s.entries {
			if e.PortfolioID == portfolioID && e.StockID == stockID {
				delete(s.entries, id)
			}
		}
		return nil
	})
}

func (m *Memory) TouchPortfolio(ctx context.Context, portfolio *models.Portfolio, at time.Time) error {
	return m.do("TouchPortfolio", func(s *state) error {
		p, ok := s.portfolios[portfolio.ID]
		if !ok {
			return database.ErrNotFound
		}
		p.UpdatedAt = at
		portfolio.UpdatedAt = at
		s.portfolios[p.ID] = p
		return nil
	})
}

// Transactions

func (m *Memory) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return m.do("CreateTransaction", func(s *state) error {
		txn.ID = s.nextID()
		stored := *txn
		stored.Stock = nil
		stored.Quantity = column(stored.Quantity)
		stored.Price = column(stored.Price)
		stored.Total = column(stored.Total)
		s.txns = append(s.txns, stored)
		return nil
	})
}

func (m *Memory) ListTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var out []models.Transaction
	err := m.do("ListTransactions", func(s *state) error {
		for _, t := range s.txns {
			if t.UserID != userID {
				continue
			}
			if st, ok := s.stocks[t.StockID]; ok {
				t.Stock = &models.Stock{ID: st.ID, Symbol: st.Symbol, CompanyName: st.CompanyName}
			}
			out = append(out, t)
		}
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Date.Equal(out[j].Date) {
				return out[i].ID > out[j].ID
			}
			return out[i].Date.After(out[j].Date)
		})
		return nil
	})
	return out, err
}
