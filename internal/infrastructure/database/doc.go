// Package database provides SQLite connectivity for SceneFixer.
//
// It owns the connection lifecycle and applies the embedded schema
// migrations that back the device test history and the repair log.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or carry defaults, and
// every .up.sql has a matching .down.sql.
package database
