package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock-trader/models"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicate          = errors.New("duplicate record")
	ErrInvalidTransaction = fmt.Errorf("invalid transaction")
	ErrInvalidData        = fmt.Errorf("invalid data, expected slice")
)

// Repository is the persistence surface used by the services. Store is the
// gorm implementation; tests substitute in-memory doubles.
type Repository interface {
	StockRepository
	UserRepository
	PortfolioRepository
	TransactionRepository

	// InTx runs fn inside one database transaction. Any error returned by fn
	// rolls back every write made through the Repository it receives.
	InTx(ctx context.Context, fn func(Repository) error) error
}

// Store implements Repository on top of gorm.
type Store struct {
	db *gorm.DB
}

var _ Repository = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema for every model.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrating models: %w", err)
	}
	return nil
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) InTx(ctx context.Context, fn func(Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CreateInBatches inserts a slice of models in chunks of batchSize inside a
// single transaction. Rows that conflict with existing unique keys are skipped.
func (s *Store) CreateInBatches(ctx context.Context, data interface{}, batchSize int) error {
	if batchSize <= 0 {
		return ErrInvalidTransaction
	}

	slice := reflect.ValueOf(data)
	if slice.Kind() != reflect.Slice {
		return ErrInvalidData
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total := slice.Len()
		for i := 0; i < total; i += batchSize {
			end := i + batchSize
			if end > total {
				end = total
			}

			chunk := slice.Slice(i, end).Interface()
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(chunk).Error; err != nil {
				return fmt.Errorf("batch insert failed: %w", err)
			}
		}
		return nil
	})
}

// notFound converts gorm's sentinel into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// duplicate converts a unique-key violation into ErrDuplicate. It relies on
// gorm.Config.TranslateError being enabled.
func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
