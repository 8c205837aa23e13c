// Package testdb opens throwaway SQLite databases with the production schema
// for package tests.
package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"household-ledger/internal/database"
	"household-ledger/internal/models"
)

var seq atomic.Int64

// Open returns a migrated in-memory database. A single pooled connection keeps
// every statement on the same in-memory file and serializes concurrent callers.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=private", seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixture seeds users, families and memberships.
type Fixture struct {
	t  testing.TB
	db *gorm.DB
}

func NewFixture(t testing.TB, db *gorm.DB) *Fixture {
	return &Fixture{t: t, db: db}
}

func (f *Fixture) User(username string) models.User {
	f.t.Helper()
	u := models.User{ID: uuid.NewString(), Username: username, DisplayName: username}
	if err := f.db.Create(&u).Error; err != nil {
		f.t.Fatalf("create user: %v", err)
	}
	return u
}

// Family creates a family with the given status owned by owner, including the
// owner's active membership.
func (f *Fixture) Family(slug, status string, owner models.User) models.Family {
	f.t.Helper()
	fam := models.Family{ID: uuid.NewString(), Slug: slug, Name: slug, OwnerUserID: owner.ID, Status: status}
	if err := f.db.Create(&fam).Error; err != nil {
		f.t.Fatalf("create family: %v", err)
	}
	f.Member(fam, owner, models.RoleOwner, true)
	return fam
}

func (f *Fixture) Member(fam models.Family, u models.User, role string, active bool) {
	f.t.Helper()
	m := models.FamilyMember{FamilyID: fam.ID, UserID: u.ID, Role: role, IsActive: active, CreatedAt: time.Now().UTC()}
	if err := f.db.Create(&m).Error; err != nil {
		f.t.Fatalf("create member: %v", err)
	}
}

func (f *Fixture) Tag(fam models.Family, name string) models.Tag {
	f.t.Helper()
	tag := models.Tag{ID: uuid.NewString(), FamilyID: fam.ID, Name: name, NameKey: models.TagKey(name)}
	if err := f.db.Create(&tag).Error; err != nil {
		f.t.Fatalf("create tag: %v", err)
	}
	return tag
}
