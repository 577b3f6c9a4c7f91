package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-trader/auth"
	"stock-trader/database/dbtest"
	"stock-trader/middleware"
	"stock-trader/models"
	"stock-trader/services"
)

type testServer struct {
	router *gin.Engine
	mem    *dbtest.Memory
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := dbtest.NewMemory()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	locks := services.NewUserLocker()
	h := &Handler{
		Stocks: services.NewStockService(mem, nil),
		Users: services.NewUserService(mem, tokens, nil, locks, services.UserSettings{
			StartingBalance: decimal.NewFromInt(1000),
			AdminEmails:     []string{"admin@example.com"},
		}),
		Trading:   services.NewTradingService(mem, locks, nil, nil),
		Portfolio: services.NewPortfolioService(mem),
	}

	router := gin.New()
	h.Routes(router, Guards{
		Auth:      middleware.JWTAuth(tokens),
		Admin:     middleware.AdminOnly(),
		RateLimit: middleware.NewRateLimiter(1000, 1000).Handler(),
	})
	return &testServer{router: router, mem: mem, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (s *testServer) register(t *testing.T, email string) (token string, id uint) {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/api/users", "", gin.H{"name": "Test", "email": email, "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["token"].(string), uint(body["id"].(float64))
}

func (s *testServer) stock(t *testing.T, symbol string, price int64) *models.Stock {
	t.Helper()
	stock := models.NewStock(symbol, symbol+" Inc.", decimal.NewFromInt(price), decimal.NewFromInt(price), time.Now())
	require.NoError(t, s.mem.CreateStock(context.Background(), stock))
	return stock
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.stock(t, "AAPL", 180)

	w, body := s.do(t, http.MethodGet, "/api/test", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "API is working!", body["message"])

	w, body = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = s.do(t, http.MethodGet, "/api/stocks", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "AAPL", list[0]["symbol"])
	assert.Equal(t, float64(180), list[0]["price"])

	w, body = s.do(t, http.MethodGet, "/api/stocks/aapl", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AAPL Inc.", body["companyName"])

	w, body = s.do(t, http.MethodGet, "/api/stocks/NOPE", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Stock not found", body["message"])

	w, _ = s.do(t, http.MethodGet, "/api/stocks/search/AAP", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w, body = s.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "API endpoint not found", body["message"])
}

func TestHealthCheckReportsStoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{Ping: func(context.Context) error { return errors.New("connection refused") }}
	router := gin.New()
	router.GET("/health", h.HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodPost, "/api/users", "", gin.H{"name": "Ada", "email": "ada@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, float64(1000), body["balance"])
	assert.Equal(t, "user", body["role"])
	assert.NotEmpty(t, body["token"])
	assert.NotContains(t, w.Body.String(), "password")

	w, body = s.do(t, http.MethodPost, "/api/users", "", gin.H{"name": "Ada", "email": "ada@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User already exists", body["message"])

	w, body = s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "ada@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["token"])

	w, body = s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "ada@example.com", "password": "nope!!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", body["message"])

	w, _ = s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileAndBalance(t *testing.T) {
	s := newTestServer(t)
	token, id := s.register(t, "ada@example.com")

	w, _ := s.do(t, http.MethodGet, "/api/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, http.MethodGet, "/api/users/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authorized, token failed", body["message"])

	w, body = s.do(t, http.MethodGet, "/api/users/profile", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(id), body["id"])

	w, body = s.do(t, http.MethodPut, "/api/users/balance", token, gin.H{"amount": 250})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1250), body["balance"])

	w, _ = s.do(t, http.MethodPut, "/api/users/balance", token, gin.H{"amount": -5000})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminStockManagement(t *testing.T) {
	s := newTestServer(t)
	userToken, _ := s.register(t, "ada@example.com")
	adminToken, _ := s.register(t, "admin@example.com")
	payload := gin.H{"symbol": "nflx", "companyName": "Netflix", "price": 110, "previousClose": 100}

	w, body := s.do(t, http.MethodPost, "/api/stocks", userToken, payload)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized as an admin", body["message"])

	w, body = s.do(t, http.MethodPost, "/api/stocks", adminToken, payload)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "NFLX", body["symbol"])
	assert.Equal(t, float64(10), body["changePercent"])
	id := uint(body["id"].(float64))

	w, _ = s.do(t, http.MethodPost, "/api/stocks", adminToken, payload)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = s.do(t, http.MethodPut, "/api/stocks/"+itoa(id), adminToken, gin.H{"price": 121})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(110), body["previousClose"])

	w, _ = s.do(t, http.MethodGet, "/api/stocks/NFLX/history", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history, 2)

	w, _ = s.do(t, http.MethodPut, "/api/stocks/abc", adminToken, gin.H{"price": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/stocks/"+itoa(id), adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/stocks/NFLX", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTradingFlow(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "ada@example.com")
	stock := s.stock(t, "AAPL", 100)

	w, body := s.do(t, http.MethodPost, "/api/transactions/buy", token, gin.H{"stockId": stock.ID, "quantity": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(500), body["newBalance"])
	txn := body["transaction"].(map[string]any)
	assert.Equal(t, "buy", txn["type"])
	assert.Equal(t, float64(500), txn["total"])

	w, body = s.do(t, http.MethodPost, "/api/transactions/buy", token, gin.H{"stockId": stock.ID, "quantity": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Insufficient funds", body["message"])

	w, body = s.do(t, http.MethodPost, "/api/transactions/buy", token, gin.H{"stockId": stock.ID, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please provide valid stockId and quantity", body["message"])

	w, body = s.do(t, http.MethodPost, "/api/transactions/buy", token, gin.H{"stockId": 999, "quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Stock not found", body["message"])

	w, body = s.do(t, http.MethodPost, "/api/transactions/sell", token, gin.H{"stockId": stock.ID, "quantity": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "You do not have enough shares to sell", body["message"])

	w, body = s.do(t, http.MethodPost, "/api/transactions/sell", token, gin.H{"stockId": stock.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(700), body["newBalance"])

	w, body = s.do(t, http.MethodGet, "/api/portfolio", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	holdings := body["stocks"].([]any)
	require.Len(t, holdings, 1)
	holding := holdings[0].(map[string]any)
	assert.Equal(t, float64(3), holding["quantity"])
	assert.Equal(t, float64(300), holding["currentValue"])
	assert.Equal(t, float64(300), body["totalInvestment"])

	w, _ = s.do(t, http.MethodGet, "/api/transactions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var txns []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txns))
	require.Len(t, txns, 2)
	assert.Equal(t, "sell", txns[0]["type"])

	w, _ = s.do(t, http.MethodGet, "/api/transactions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSellWithoutPortfolio(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "ada@example.com")
	stock := s.stock(t, "AAPL", 100)

	w, body := s.do(t, http.MethodPost, "/api/transactions/sell", token, gin.H{"stockId": stock.ID, "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "You do not have a portfolio", body["message"])
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
