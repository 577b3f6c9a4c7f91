package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stock-trader/apperrors"
	"stock-trader/middleware"
	"stock-trader/models"
	"stock-trader/services"
)

type registerInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshInput struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type balanceInput struct {
	Amount decimal.Decimal `json:"amount"`
}

type profileResponse struct {
	ID      uint            `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
	Role    string          `json:"role"`
}

type sessionResponse struct {
	profileResponse
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func profileOf(u *models.User) profileResponse {
	return profileResponse{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Balance: u.Balance,
		Role:    u.Role,
	}
}

func sessionOf(s *services.Session) sessionResponse {
	return sessionResponse{
		profileResponse: profileOf(s.User),
		Token:           s.Token,
		RefreshToken:    s.RefreshToken,
	}
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var input registerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.Validation("Please provide name, email and password"))
		return
	}

	session, err := h.Users.Register(c.Request.Context(), services.RegisterInput{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionOf(session))
}

func (h *Handler) Login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.Validation("Please provide email and password"))
		return
	}

	session, err := h.Users.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionOf(session))
}

func (h *Handler) Refresh(c *gin.Context) {
	var input refreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.Validation("Please provide a refresh token"))
		return
	}

	session, err := h.Users.Refresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionOf(session))
}

func (h *Handler) Profile(c *gin.Context) {
	user, err := h.Users.Profile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileOf(user))
}

// UpdateBalance adds the signed amount in the body to the caller's cash.
func (h *Handler) UpdateBalance(c *gin.Context) {
	var input balanceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperrors.Validation("Please provide a valid amount"))
		return
	}

	user, err := h.Users.AdjustBalance(c.Request.Context(), middleware.UserID(c), input.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileOf(user))
}
