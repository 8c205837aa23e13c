package models

import "time"

const (
	FamilyStatusPendingAdmin = "pending_admin"
	FamilyStatusActive       = "active"
	FamilyStatusRejected     = "rejected"

	RoleOwner  = "owner"
	RoleMember = "member"

	JoinStatusPending   = "pending"
	JoinStatusApproved  = "approved"
	JoinStatusRejected  = "rejected"
	JoinStatusCancelled = "cancelled"
)

type Family struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Slug        string    `gorm:"type:varchar(40);uniqueIndex;not null" json:"slug"`
	Name        string    `gorm:"type:varchar(120);not null" json:"name"`
	OwnerUserID string    `gorm:"type:varchar(36);index;not null" json:"owner_user_id"`
	Status      string    `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type FamilyMember struct {
	FamilyID  string    `gorm:"primaryKey;type:varchar(36)" json:"family_id"`
	UserID    string    `gorm:"primaryKey;type:varchar(36);index" json:"user_id"`
	Role      string    `gorm:"type:varchar(12);not null" json:"role"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type JoinRequest struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FamilyID        string     `gorm:"type:varchar(36);index;not null" json:"family_id"`
	RequesterUserID string     `gorm:"type:varchar(36);index;not null" json:"requester_user_id"`
	Status          string     `gorm:"type:varchar(12);not null" json:"status"`
	DecidedByUserID *string    `gorm:"type:varchar(36)" json:"decided_by_user_id,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
