package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stock-trader/apperrors"
	"stock-trader/logger"
	"stock-trader/services"
)

// Handler exposes the services over HTTP.
type Handler struct {
	Stocks    *services.StockService
	Users     *services.UserService
	Trading   *services.TradingService
	Portfolio *services.PortfolioService
	// Ping reports datastore health; nil means always healthy.
	Ping func(ctx context.Context) error
}

// Guards are the middleware applied to route groups.
type Guards struct {
	Auth      gin.HandlerFunc
	Admin     gin.HandlerFunc
	RateLimit gin.HandlerFunc
}

// Routes mounts every endpoint on router.
func (h *Handler) Routes(router *gin.Engine, g Guards) {
	router.GET("/health", h.HealthCheck)

	api := router.Group("/api")
	api.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is working!"})
	})

	stocks := api.Group("/stocks")
	{
		stocks.GET("", h.ListStocks)
		stocks.GET("/search/:query", h.SearchStocks)
		stocks.GET("/:symbol", h.GetStock)
		stocks.GET("/:symbol/history", h.StockHistory)
		stocks.POST("", g.Auth, g.Admin, h.CreateStock)
		stocks.PUT("/:symbol", g.Auth, g.Admin, h.UpdateStockPrice)
		stocks.DELETE("/:symbol", g.Auth, g.Admin, h.DeleteStock)
	}

	users := api.Group("/users")
	{
		users.POST("", g.RateLimit, h.RegisterUser)
		users.POST("/login", g.RateLimit, h.Login)
		users.POST("/refresh", g.RateLimit, h.Refresh)
		users.GET("/profile", g.Auth, h.Profile)
		users.PUT("/balance", g.Auth, h.UpdateBalance)
	}

	api.GET("/portfolio", g.Auth, h.GetPortfolio)

	txns := api.Group("/transactions", g.Auth)
	{
		txns.GET("", h.ListTransactions)
		txns.POST("/buy", h.Buy)
		txns.POST("/sell", h.Sell)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "API endpoint not found"})
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if h.Ping != nil {
		if err := h.Ping(c.Request.Context()); err != nil {
			logger.FromContext(c.Request.Context()).Error("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError writes {message} with the status of err. Internal errors are
// logged and answered with a generic message.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	if appErr.Kind == apperrors.KindInternal {
		logger.FromContext(c.Request.Context()).Error(appErr.Message, "error", appErr.Err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
		return
	}
	c.JSON(appErr.StatusCode(), gin.H{"message": appErr.Message})
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 0)
	if err != nil || id == 0 {
		respondError(c, apperrors.Validation("Invalid id"))
		return 0, false
	}
	return uint(id), true
}
