package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Ritual is one generated wellness ritual. Rating stays nil until the user
// submits feedback; every other field is immutable after insert.
type Ritual struct {
	ID                uuid.UUID                   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID            uuid.UUID                   `gorm:"index;not null;column:user_id" json:"user_id"`
	User              *User                       `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	EmotionalNeed     string                      `gorm:"not null;column:emotional_need" json:"emotional_need"`
	ComfortMedia      datatypes.JSONSlice[string] `gorm:"column:comfort_media" json:"comfort_media"`
	RitualContent     string                      `gorm:"type:text;not null;column:ritual_content" json:"ritual_content"`
	Recommendations   datatypes.JSONMap           `gorm:"column:recommendations" json:"recommendations"`
	EstimatedDuration string                      `gorm:"column:estimated_duration" json:"estimated_duration"`
	Rating            *int                        `gorm:"column:rating" json:"rating,omitempty"`
	CreatedAt         time.Time                   `gorm:"not null;default:now()" json:"created_at"`
}

func (Ritual) TableName() string {
	return "ritual"
}
