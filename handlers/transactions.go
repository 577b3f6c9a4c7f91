package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stock-trader/apperrors"
	"stock-trader/middleware"
	"stock-trader/services"
)

type tradeInput struct {
	StockID  uint            `json:"stockId"`
	Quantity decimal.Decimal `json:"quantity"`
}

func (h *Handler) Buy(c *gin.Context) {
	h.trade(c, h.Trading.Buy)
}

func (h *Handler) Sell(c *gin.Context) {
	h.trade(c, h.Trading.Sell)
}

func (h *Handler) trade(c *gin.Context, execute func(ctx context.Context, req services.TradeRequest) (*services.TradeResult, error)) {
	var input tradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.ErrInvalidTrade)
		return
	}

	result, err := execute(c.Request.Context(), services.TradeRequest{
		UserID:   middleware.UserID(c),
		StockID:  input.StockID,
		Quantity: input.Quantity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	txns, err := h.Trading.History(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}
