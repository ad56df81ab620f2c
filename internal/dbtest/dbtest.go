// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"fmt"
	"regexp"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/realaashishly/Social-Bot/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Open returns a fresh sqlite database private to t.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	name := unsafeChars.ReplaceAllString(t.Name(), "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return gdb
}
