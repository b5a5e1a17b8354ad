// Package sqlitetest opens throwaway databases and builds comic fixtures for
// tests that need the real gorm stores.
package sqlitetest

import (
	"fmt"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"comicshelf/internal/domain/comic"
	"comicshelf/internal/infrastructure/persistence/sqlite/model"
)

// Open creates a migrated database in a temp dir, closed on cleanup.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "comicshelf.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

// Comics builds n comics with ids first..first+n-1.
func Comics(first int64, n int) []comic.Comic {
	items := make([]comic.Comic, 0, n)
	for i := 0; i < n; i++ {
		id := first + int64(i)
		items = append(items, comic.Comic{
			ID:          id,
			Title:       fmt.Sprintf("Comic #%d", id),
			Description: fmt.Sprintf("description %d", id),
			Thumbnail:   comic.Image{Path: fmt.Sprintf("http://img.example.com/%d", id), Extension: "jpg"},
			Creators:    []comic.CreatorSummary{{Name: "Stan Lee", Role: "writer"}},
		})
	}
	return items
}
