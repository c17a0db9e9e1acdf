package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-hublink/internal/device"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-hublink/migrations"
)

// TestEmbeddedSchema applies the shipped migrations and writes through the
// history repository against the resulting table.
func TestEmbeddedSchema(t *testing.T) {
	db, err := database.Open(database.Config{
		Path:    filepath.Join(t.TempDir(), "hublink.db"),
		WALMode: true,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	repo := device.NewSQLiteHistoryRepository(db.DB)
	if err := repo.RecordAttributeChange(ctx, "dev-1", "switch", "on", device.HistorySourcePush); err != nil {
		t.Fatalf("RecordAttributeChange() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "dev-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Value != "on" {
		t.Fatalf("entries = %+v, want one switch=on", entries)
	}

	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
}
