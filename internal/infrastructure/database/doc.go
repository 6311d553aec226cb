// Package database provides SQLite connectivity for NEXA Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded schema migrations with per-migration transactions
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Migrations are additive-only to support safe rollbacks:
//   - New columns must be NULLABLE or have DEFAULT values
//   - Never DROP or RENAME columns
//   - Each migration file has both .up.sql and .down.sql
package database
