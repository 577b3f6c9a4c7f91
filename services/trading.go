package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"stock-trader/apperrors"
	"stock-trader/database"
	"stock-trader/logger"
	"stock-trader/messaging"
	"stock-trader/models"
)

// TradeRequest asks to buy or sell Quantity shares of StockID for UserID.
type TradeRequest struct {
	UserID   uint
	StockID  uint
	Quantity decimal.Decimal
}

// TradeResult is returned for every executed trade.
type TradeResult struct {
	Transaction *models.Transaction `json:"transaction"`
	NewBalance  decimal.Decimal     `json:"newBalance"`
}

// TradingService executes market buys and sells at the catalog price.
//
// A trade is one unit of work: the ledger row, the balance and the position
// are written in a single database transaction, with the user's row locked,
// and trades of the same user are serialized by a UserLocker.
type TradingService struct {
	repo    database.Repository
	locks   *UserLocker
	events  TradePublisher
	metrics TradeRecorder
	now     func() time.Time
}

func NewTradingService(repo database.Repository, locks *UserLocker, events TradePublisher, metrics TradeRecorder) *TradingService {
	if events == nil {
		events = messaging.NopPublisher{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &TradingService{
		repo:    repo,
		locks:   locks,
		events:  events,
		metrics: metrics,
		now:     time.Now,
	}
}

// Buy debits price * quantity from the user's balance and adds the shares to
// their portfolio, re-averaging the position's buy price.
func (s *TradingService) Buy(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	if err := validateTrade(req); err != nil {
		s.metrics.TradeFailed(string(models.Buy), rejectReason(err))
		return nil, err
	}

	unlock := s.locks.Lock(req.UserID)
	defer unlock()

	var result TradeResult
	err := s.repo.InTx(ctx, func(repo database.Repository) error {
		user, err := repo.LockUser(ctx, req.UserID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrUserNotFound, "loading user")
		}
		stock, err := repo.FindStockByID(ctx, req.StockID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrStockNotFound, "loading stock")
		}

		now := s.now()
		txn := models.NewTransaction(user.ID, stock, models.Buy, req.Quantity, now)
		cost := txn.Total
		if user.Balance.LessThan(cost) {
			return apperrors.ErrInsufficientFunds
		}

		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return apperrors.Internal("recording transaction", err)
		}

		user.Balance = user.Balance.Sub(cost)
		if err := repo.SaveBalance(ctx, user); err != nil {
			return apperrors.Internal("debiting balance", err)
		}

		portfolio, err := findOrCreatePortfolio(ctx, repo, user.ID)
		if err != nil {
			return err
		}
		entry := portfolio.Buy(stock, req.Quantity, cost)
		if err := repo.SaveEntry(ctx, &entry); err != nil {
			return apperrors.Internal("updating portfolio", err)
		}
		if err := repo.TouchPortfolio(ctx, portfolio, now); err != nil {
			return apperrors.Internal("updating portfolio", err)
		}

		result = TradeResult{Transaction: txn, NewBalance: user.Balance}
		return nil
	})
	if err != nil {
		s.metrics.TradeFailed(string(models.Buy), rejectReason(err))
		return nil, err
	}

	s.committed(ctx, result.Transaction)
	return &result, nil
}

// Sell credits price * quantity to the user's balance and removes the shares
// from their position. The average buy price of what remains is unchanged.
func (s *TradingService) Sell(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	if err := validateTrade(req); err != nil {
		s.metrics.TradeFailed(string(models.Sell), rejectReason(err))
		return nil, err
	}

	unlock := s.locks.Lock(req.UserID)
	defer unlock()

	var result TradeResult
	err := s.repo.InTx(ctx, func(repo database.Repository) error {
		user, err := repo.LockUser(ctx, req.UserID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrUserNotFound, "loading user")
		}
		stock, err := repo.FindStockByID(ctx, req.StockID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrStockNotFound, "loading stock")
		}

		portfolio, err := repo.FindPortfolio(ctx, user.ID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrNoPortfolio, "loading portfolio")
		}
		held, ok := portfolio.Entry(stock.ID)
		if !ok {
			return apperrors.ErrStockNotOwned
		}
		if held.Quantity.LessThan(req.Quantity) {
			return apperrors.ErrInsufficientShares
		}

		now := s.now()
		txn := models.NewTransaction(user.ID, stock, models.Sell, req.Quantity, now)
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return apperrors.Internal("recording transaction", err)
		}

		user.Balance = user.Balance.Add(txn.Total)
		if err := repo.SaveBalance(ctx, user); err != nil {
			return apperrors.Internal("crediting balance", err)
		}

		entry, closed, err := portfolio.Sell(stock.ID, req.Quantity)
		if err != nil {
			return err
		}
		if closed {
			err = repo.DeleteEntry(ctx, portfolio.ID, stock.ID)
		} else {
			err = repo.SaveEntry(ctx, &entry)
		}
		if err != nil {
			return apperrors.Internal("updating portfolio", err)
		}
		if err := repo.TouchPortfolio(ctx, portfolio, now); err != nil {
			return apperrors.Internal("updating portfolio", err)
		}

		result = TradeResult{Transaction: txn, NewBalance: user.Balance}
		return nil
	})
	if err != nil {
		s.metrics.TradeFailed(string(models.Sell), rejectReason(err))
		return nil, err
	}

	s.committed(ctx, result.Transaction)
	return &result, nil
}

// History returns the user's transactions, newest first.
func (s *TradingService) History(ctx context.Context, userID uint) ([]models.Transaction, error) {
	txns, err := s.repo.ListTransactions(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("listing transactions", err)
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return txns, nil
}

func (s *TradingService) committed(ctx context.Context, txn *models.Transaction) {
	total, _ := txn.Total.Float64()
	s.metrics.TradeExecuted(string(txn.Type), total)

	log := logger.FromContext(ctx)
	log.Info("trade executed",
		slog.Uint64("user_id", uint64(txn.UserID)),
		slog.String("symbol", txn.Symbol),
		slog.String("type", string(txn.Type)),
		slog.String("quantity", txn.Quantity.String()),
		slog.String("total", txn.Total.String()),
	)

	event := messaging.TradeEvent{
		TransactionID: txn.ID,
		UserID:        txn.UserID,
		StockID:       txn.StockID,
		Symbol:        txn.Symbol,
		Type:          string(txn.Type),
		Quantity:      txn.Quantity.String(),
		Price:         txn.Price.String(),
		Total:         txn.Total.String(),
		Date:          txn.Date,
	}
	if err := s.events.PublishTrade(ctx, event); err != nil {
		log.Warn("publishing trade event", "error", err, "transaction_id", txn.ID)
	}
}

func validateTrade(req TradeRequest) error {
	if req.StockID == 0 || !req.Quantity.IsPositive() || !models.FitsScale(req.Quantity, models.QuantityScale) {
		return apperrors.ErrInvalidTrade
	}
	return nil
}

func findOrCreatePortfolio(ctx context.Context, repo database.Repository, userID uint) (*models.Portfolio, error) {
	portfolio, err := repo.FindPortfolio(ctx, userID)
	if err == nil {
		return portfolio, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, apperrors.Internal("loading portfolio", err)
	}
	portfolio = &models.Portfolio{UserID: userID, Entries: []models.PortfolioEntry{}}
	if err := repo.CreatePortfolio(ctx, portfolio); err != nil {
		return nil, apperrors.Internal("creating portfolio", err)
	}
	return portfolio, nil
}

func mapNotFound(err error, notFound *apperrors.Error, op string) error {
	if errors.Is(err, database.ErrNotFound) {
		return notFound
	}
	return apperrors.Internal(op, err)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidTrade):
		return "invalid"
	case errors.Is(err, apperrors.ErrStockNotFound):
		return "stock_not_found"
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, apperrors.ErrNoPortfolio), errors.Is(err, apperrors.ErrStockNotOwned):
		return "no_holding"
	case errors.Is(err, apperrors.ErrInsufficientShares):
		return "insufficient_shares"
	default:
		return "error"
	}
}
