package models

import (
	"time"
)

// User mirrors the identity issued by the external auth service. Rows are
// upserted from token claims on each authenticated request.
type User struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username    string    `gorm:"type:varchar(80);index" json:"username"`
	DisplayName string    `gorm:"type:varchar(120)" json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
