package models

import (
	"strings"
	"time"
)

const (
	FallbackTagName  = "Outros"
	FallbackTagKey   = "outros"
	FallbackTagColor = "#6B7280"
)

// Tag names are unique per family ignoring case; NameKey holds the lowercased
// name so the uniqueness is a plain composite index on every backend.
type Tag struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FamilyID        string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_tags_family_name_key,priority:1" json:"-"`
	NameKey         string    `gorm:"type:varchar(80);not null;uniqueIndex:idx_tags_family_name_key,priority:2" json:"-"`
	Name            string    `gorm:"type:varchar(80);not null" json:"name"`
	Color           *string   `gorm:"type:varchar(16)" json:"color"`
	IsBuiltin       bool      `gorm:"not null" json:"is_builtin"`
	CreatedByUserID *string   `gorm:"type:varchar(36)" json:"-"`
	CreatedAt       time.Time `json:"-"`
}

type PurchaseTag struct {
	PurchaseID string `gorm:"primaryKey;type:varchar(36)"`
	TagID      string `gorm:"primaryKey;type:varchar(36);index"`
}

// TagKey is the case-insensitive identity of a tag name within a family.
func TagKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
