package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentSingle       = "avista"
	PaymentInstallments = "parcelado"
)

type Purchase struct {
	ID               string          `gorm:"primaryKey;type:varchar(36)"`
	FamilyID         string          `gorm:"type:varchar(36);index;not null"`
	CreatedByUserID  string          `gorm:"type:varchar(36);index;not null"`
	Establishment    *string         `gorm:"type:varchar(200)"`
	IssuedAt         time.Time       `gorm:"index;not null"`
	PaymentMethod    *string         `gorm:"type:varchar(40)"`
	Discount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Total            decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PaymentType      string          `gorm:"type:varchar(12);not null"`
	InstallmentCount int             `gorm:"not null"`
	CreatedAt        time.Time
}

type Installment struct {
	PurchaseID string          `gorm:"primaryKey;type:varchar(36)"`
	Seq        int             `gorm:"primaryKey;autoIncrement:false"`
	DueDate    time.Time       `gorm:"index;not null"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
}

type PurchaseItem struct {
	ID         uint            `gorm:"primaryKey"`
	PurchaseID string          `gorm:"type:varchar(36);index;not null"`
	Name       string          `gorm:"type:varchar(200);not null"`
	Qty        decimal.Decimal `gorm:"type:numeric(12,3);not null"`
	Total      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
}
