// Package database opens the SQLite file that backs the HubLink attribute
// history and applies its schema migrations.
//
// The device cache itself is never persisted; SQLite only receives an
// append-only log of attribute changes (see device.SQLiteHistoryRepository).
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are embedded by the migrations package.
package database
