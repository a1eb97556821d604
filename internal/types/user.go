package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name         string    `gorm:"not null;column:name" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	PasswordHash string    `gorm:"not null;column:password_hash" json:"-"`
	AvatarURL    string    `gorm:"column:avatar_url" json:"avatar_url,omitempty"`
	Bio          string    `gorm:"column:bio" json:"bio,omitempty"`
	Role         string    `gorm:"not null;default:user;column:role" json:"role"`
	IsVerified   bool      `gorm:"not null;default:false;column:is_verified" json:"is_verified"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
