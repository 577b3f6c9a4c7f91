package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uint            `gorm:"primarykey" json:"id"`
	Name         string          `gorm:"not null" json:"name"`
	Email        string          `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Balance      decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"balance"`
	Role         string          `gorm:"size:16;not null;default:'user'" json:"role"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
