package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Email     string    `json:"email"`
	Password  string    `json:"-" gorm:"not null"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Profile holds the member details collected after registration. A user
// without a profile row has not completed registration.
type Profile struct {
	UserID           string    `json:"user_id" gorm:"type:uuid;primaryKey"`
	Name             string    `json:"name" gorm:"not null"`
	RegimentalNumber string    `json:"regimental_number"`
	Unit             string    `json:"unit"`
	SchoolCollege    string    `json:"school_college"`
	Directorate      string    `json:"directorate"`
	Group            string    `json:"group"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
