package store

import "time"

// GORM models used for persistence.
type ProfileModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type ContentModel struct {
	ID        string    `gorm:"primaryKey"`
	URL       string    `gorm:"not null"`
	ProfileID string    `gorm:"not null;index"`
	Checked   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null;index"`
}
