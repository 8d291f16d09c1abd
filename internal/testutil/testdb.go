// Package testutil opens throwaway databases and seeds fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/config"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// T0 is the reference instant used by lending tests
var T0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// Clock is a settable time source
type Clock struct {
	Now time.Time
}

// Func returns the clock as a now function
func (c *Clock) Func() func() time.Time {
	return func() time.Time { return c.Now }
}

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) {
	c.Now = c.Now.Add(d)
}

// NewDB opens a migrated in-memory sqlite database private to t
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig(gormlogger.Default.LogMode(gormlogger.Silent)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// NewConcurrentDB opens a migrated file-backed sqlite database that serves several
// connections at once. Writers take the lock at BEGIN and wait for each other, readers
// run alongside them, so goroutines really interleave.
func NewConcurrentDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "library.db")
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=on", path)
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig(gormlogger.Default.LogMode(gormlogger.Silent)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// CreateUser inserts an active user
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@library.test",
		Name:     username,
		Password: "hash",
		Role:     "USER",
		IsActive: true,
	}
	require.NoError(t, db.WithContext(context.Background()).Create(user).Error)
	return user
}

// CreateAdmin inserts an active admin
func CreateAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	admin := CreateUser(t, db, "admin")
	require.NoError(t, db.Model(admin).Update("role", "ADMIN").Error)
	admin.Role = "ADMIN"
	return admin
}

// CreateBook inserts a book with copies available
func CreateBook(t *testing.T, db *gorm.DB, title string, copies int) *models.Book {
	t.Helper()
	category := &models.Category{Name: "Fixture " + uuid.NewString()[:8], IsActive: true}
	require.NoError(t, db.Create(category).Error)

	book := &models.Book{
		ISBN:            "978-" + uuid.NewString()[:10],
		Title:           title,
		Author:          "Fixture Author",
		CategoryID:      category.ID,
		TotalCopies:     copies,
		AvailableCopies: copies,
		IsActive:        true,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

// ReloadBook reads a book back
func ReloadBook(t *testing.T, db *gorm.DB, id uint) *models.Book {
	t.Helper()
	var book models.Book
	require.NoError(t, db.First(&book, id).Error)
	return &book
}

// ReloadIssue reads a loan back
func ReloadIssue(t *testing.T, db *gorm.DB, id uint) *models.Issue {
	t.Helper()
	var issue models.Issue
	require.NoError(t, db.First(&issue, id).Error)
	return &issue
}

// Dec builds a decimal from an integer
func Dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// RequireDecimal asserts two amounts are numerically equal
func RequireDecimal(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, got.Equal(decimal.NewFromInt(want)), "want %d, got %s %v", want, got.String(), msgAndArgs)
}
