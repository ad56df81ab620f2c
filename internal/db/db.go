package db

import (
	"fmt"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/realaashishly/Social-Bot/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// Dialector picks the gorm driver for dsn. "sqlite:<path>" opens a sqlite
// file, anything else is handed to the MySQL driver.
func Dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return gormsqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix))
	}
	return mysql.Open(dsn)
}

// Connect opens the database and pings it. Callers treat an error as fatal.
func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(Dialector(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&models.User{}, &models.Event{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
