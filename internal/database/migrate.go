package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"household-ledger/internal/models"
)

// SchemaMigration records an applied schema version.
type SchemaMigration struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"type:varchar(80);not null"`
	AppliedAt time.Time
}

type migration struct {
	version int
	name    string
	up      func(tx *gorm.DB) error
}

// Versions are append-only. Never edit an applied step; add a new one.
var migrations = []migration{
	{1, "core tables", func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&models.User{},
			&models.Family{},
			&models.FamilyMember{},
			&models.JoinRequest{},
			&models.Tag{},
			&models.Purchase{},
			&models.PurchaseTag{},
			&models.Installment{},
			&models.PurchaseItem{},
		)
	}},
	{2, "purchase listing indexes", func(tx *gorm.DB) error {
		return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_purchases_family_issued ON purchases (family_id, issued_at)`).Error
	}},
}

// Migrate applies pending migrations in order, each in its own transaction.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return fmt.Errorf("schema_migrations: %w", err)
	}
	var applied []int
	if err := db.Model(&SchemaMigration{}).Pluck("version", &applied).Error; err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.version] {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{Version: m.version, Name: m.name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// Version reports the highest applied migration.
func Version(db *gorm.DB) (int, error) {
	var v int
	err := db.Model(&SchemaMigration{}).Select("COALESCE(MAX(version), 0)").Scan(&v).Error
	return v, err
}
