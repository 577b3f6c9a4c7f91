package database

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"stock-trader/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// LockUser loads the user and holds a row lock until the surrounding
	// transaction ends.
	LockUser(ctx context.Context, id uint) (*models.User, error)
	SaveBalance(ctx context.Context, user *models.User) error
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return duplicate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *Store) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) LockUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) SaveBalance(ctx context.Context, user *models.User) error {
	res := s.db.WithContext(ctx).Model(user).Update("balance", user.Balance)
	if res.Error != nil {
		return fmt.Errorf("updating balance of user %d: %w", user.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
