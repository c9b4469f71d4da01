package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the authenticated account owned by the identity service.
// The engine only reads it (email for abuse checks, names for activity feeds).
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	FirstName string    `gorm:"size:100" json:"first_name"`
	LastName  string    `gorm:"size:100" json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// Advocate is a member profile that can invite others and earn rewards.
// ReferralCount is a cache of non-revoked rewards and is only written by the reward issuer.
type Advocate struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User          *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	DisplayName   string    `gorm:"size:255;not null" json:"display_name"`
	Handle        *string   `gorm:"uniqueIndex;size:30" json:"handle,omitempty"`
	University    string    `gorm:"size:255" json:"university"`
	ReferralCount int       `gorm:"not null;default:0" json:"referral_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for Advocate model
func (Advocate) TableName() string {
	return "advocates"
}

// BeforeCreate assigns an id when the caller did not
func (a *Advocate) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// HandleReservation records every handle ever assigned. Rows are never
// deleted, which keeps a handle from being reused by another advocate.
type HandleReservation struct {
	Handle     string    `gorm:"primaryKey;size:30" json:"handle"`
	AdvocateID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"advocate_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (HandleReservation) TableName() string {
	return "referral_handles"
}
