package common

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectDb opens the sqlite database at dbFile.
func ConnectDb(dbFile string) (*gorm.DB, error) {
	if dbFile == "" {
		return nil, fmt.Errorf("sqlite database path not set")
	}

	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %s: %w", dbFile, err)
	}
	log.Println("opened sqlite db at:", dbFile)
	return db, nil
}
