// Package database provides SQLite persistence for the tracker hub.
//
// It wraps database/sql with lifecycle management (directory creation,
// WAL mode, busy timeout, restrictive file permissions), an embedded
// migration runner, and a health check used by the startup sequence.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the root migrations/ directory and are embedded
// into the binary via the migrations package's go:embed registration.
package database
