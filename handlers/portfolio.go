package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stock-trader/middleware"
)

func (h *Handler) GetPortfolio(c *gin.Context) {
	valuation, err := h.Portfolio.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, valuation)
}
