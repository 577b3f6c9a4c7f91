package services

import (
	"context"
	"errors"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stock-trader/apperrors"
	"stock-trader/auth"
	"stock-trader/database"
	"stock-trader/logger"
	"stock-trader/models"
)

const minPasswordLength = 6

// RegisterInput is the public sign-up payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Session is an authenticated user with freshly issued tokens.
type Session struct {
	User         *models.User
	Token        string
	RefreshToken string
}

// UserSettings configures new accounts and tokens.
type UserSettings struct {
	StartingBalance decimal.Decimal
	AdminEmails     []string
	RefreshExpiry   time.Duration
}

type UserService struct {
	repo     database.Repository
	tokens   *auth.TokenManager
	refresh  TokenStore
	locks    *UserLocker
	settings UserSettings
}

func NewUserService(repo database.Repository, tokens *auth.TokenManager, refresh TokenStore, locks *UserLocker, settings UserSettings) *UserService {
	return &UserService{
		repo:     repo,
		tokens:   tokens,
		refresh:  refresh,
		locks:    locks,
		settings: settings,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, apperrors.Validation("Please provide name, email and password")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.Validation("Please provide a valid email")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperrors.Validation("Password must be at least 6 characters")
	}

	if _, err := s.repo.FindUserByEmail(ctx, email); err == nil {
		return nil, apperrors.ErrEmailTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, apperrors.Internal("looking up user", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Internal("hashing password", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Balance:      s.settings.StartingBalance,
		Role:         models.RoleUser,
	}
	if slices.Contains(s.settings.AdminEmails, email) {
		user.Role = models.RoleAdmin
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, apperrors.Internal("creating user", err)
	}

	logger.FromContext(ctx).Info("user registered", "user_id", user.ID, "role", user.Role)
	return s.session(ctx, user)
}

func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.repo.FindUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Internal("looking up user", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return s.session(ctx, user)
}

// Refresh exchanges a refresh token for a new session. The old refresh token
// is revoked.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if s.refresh == nil || refreshToken == "" {
		return nil, apperrors.ErrInvalidToken
	}
	userID, err := s.refresh.Redeem(ctx, refreshToken)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, apperrors.ErrInvalidToken, "loading user")
	}
	return s.session(ctx, user)
}

func (s *UserService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, apperrors.ErrUserNotFound, "loading user")
	}
	return user, nil
}

// AdjustBalance adds amount (which may be negative) to the user's cash.
func (s *UserService) AdjustBalance(ctx context.Context, userID uint, amount decimal.Decimal) (*models.User, error) {
	if amount.IsZero() {
		return nil, apperrors.Validation("Please provide a non-zero amount")
	}
	if !models.FitsScale(amount, models.Scale) {
		return nil, apperrors.Validation("Amount can have at most 8 decimal places")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var user *models.User
	err := s.repo.InTx(ctx, func(repo database.Repository) error {
		var err error
		user, err = repo.LockUser(ctx, userID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrUserNotFound, "loading user")
		}
		balance := user.Balance.Add(amount)
		if balance.IsNegative() {
			return apperrors.ErrNegativeBalance
		}
		user.Balance = balance
		if err := repo.SaveBalance(ctx, user); err != nil {
			return apperrors.Internal("saving balance", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) session(ctx context.Context, user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.Internal("issuing token", err)
	}
	session := &Session{User: user, Token: token}

	if s.refresh != nil {
		refreshToken := uuid.NewString()
		if err := s.refresh.Save(ctx, refreshToken, user.ID, s.settings.RefreshExpiry); err != nil {
			return nil, apperrors.Internal("storing refresh token", err)
		}
		session.RefreshToken = refreshToken
	}
	return session, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
