package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stock-trader/apperrors"
	"stock-trader/services"
)

type createStockInput struct {
	Symbol        string          `json:"symbol" binding:"required"`
	CompanyName   string          `json:"companyName" binding:"required"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previousClose"`
}

type updatePriceInput struct {
	Price decimal.Decimal `json:"price"`
}

func (h *Handler) ListStocks(c *gin.Context) {
	stocks, err := h.Stocks.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stocks)
}

func (h *Handler) GetStock(c *gin.Context) {
	stock, err := h.Stocks.GetBySymbol(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

func (h *Handler) SearchStocks(c *gin.Context) {
	stocks, err := h.Stocks.Search(c.Request.Context(), c.Param("query"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stocks)
}

// StockHistory accepts an optional ?limit=N.
func (h *Handler) StockHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	prices, err := h.Stocks.History(c.Request.Context(), c.Param("symbol"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prices)
}

func (h *Handler) CreateStock(c *gin.Context) {
	var input createStockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.Validation("Please provide symbol, companyName, price and previousClose"))
		return
	}

	stock, err := h.Stocks.Create(c.Request.Context(), services.NewStockInput{
		Symbol:        input.Symbol,
		CompanyName:   input.CompanyName,
		Price:         input.Price,
		PreviousClose: input.PreviousClose,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stock)
}

// UpdateStockPrice handles PUT /api/stocks/:id; the segment shares its name
// with the public symbol routes.
func (h *Handler) UpdateStockPrice(c *gin.Context) {
	id, ok := idParam(c, "symbol")
	if !ok {
		return
	}
	var input updatePriceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.Validation("Please provide a valid price"))
		return
	}

	stock, err := h.Stocks.UpdatePrice(c.Request.Context(), id, input.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

func (h *Handler) DeleteStock(c *gin.Context) {
	id, ok := idParam(c, "symbol")
	if !ok {
		return
	}
	if err := h.Stocks.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stock removed"})
}
