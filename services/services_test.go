package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-trader/database/dbtest"
	"stock-trader/messaging"
	"stock-trader/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s", want, got)
}

// clock returns a time source that advances one second per call.
func clock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

var userSeq atomic.Int32

func seedUser(t *testing.T, mem *dbtest.Memory, balance string) *models.User {
	t.Helper()
	u := &models.User{
		Name:    "Trader",
		Email:   fmt.Sprintf("trader%d@example.com", userSeq.Add(1)),
		Balance: d(balance),
		Role:    models.RoleUser,
	}
	require.NoError(t, mem.CreateUser(context.Background(), u))
	return u
}

func seedStock(t *testing.T, mem *dbtest.Memory, symbol, price string) *models.Stock {
	t.Helper()
	s := models.NewStock(symbol, symbol+" Corp", d(price), d(price), time.Now())
	require.NoError(t, mem.CreateStock(context.Background(), s))
	return s
}

func setPrice(t *testing.T, mem *dbtest.Memory, stock *models.Stock, price string) {
	t.Helper()
	stock.UpdatePrice(d(price), time.Now())
	require.NoError(t, mem.SaveStock(context.Background(), stock))
}

func balanceOf(t *testing.T, mem *dbtest.Memory, userID uint) decimal.Decimal {
	t.Helper()
	u, err := mem.FindUserByID(context.Background(), userID)
	require.NoError(t, err)
	return u.Balance
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.TradeEvent
}

func (p *recordingPublisher) PublishTrade(_ context.Context, e messaging.TradeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	executed map[string]int
	failed   map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{executed: map[string]int{}, failed: map[string]int{}}
}

func (m *recordingMetrics) TradeExecuted(kind string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executed[kind]++
}

func (m *recordingMetrics) TradeFailed(kind, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[kind+":"+reason]++
}

type memoryCache struct {
	version     int64
	entries     map[int64][]models.Stock
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[int64][]models.Stock{}}
}

func (c *memoryCache) Version(context.Context) (int64, error) {
	return c.version, nil
}

func (c *memoryCache) Stocks(_ context.Context, version int64) ([]models.Stock, bool, error) {
	stocks, ok := c.entries[version]
	return stocks, ok, nil
}

func (c *memoryCache) SetStocks(_ context.Context, version int64, stocks []models.Stock) error {
	c.entries[version] = stocks
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.version++
	c.invalidated++
	return nil
}

func (c *memoryCache) cached() bool {
	_, ok := c.entries[c.version]
	return ok
}

type memoryTokens struct {
	mu     sync.Mutex
	tokens map[string]uint
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{tokens: map[string]uint{}}
}

func (m *memoryTokens) Save(_ context.Context, token string, userID uint, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = userID
	return nil
}

func (m *memoryTokens) Redeem(_ context.Context, token string) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokens[token]
	if !ok {
		return 0, assert.AnError
	}
	delete(m.tokens, token)
	return id, nil
}
