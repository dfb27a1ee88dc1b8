// Package storage opens the portal's database and redis connections and
// owns the schema.
//
// Both PostgreSQL (lib/pq) and SQLite (mattn/go-sqlite3) are supported; the
// embedded migrations and every query in the repository use $N placeholders
// and portable column types so the same SQL runs on either driver.
//
//	if err := storage.Migrate(cfg.Driver, cfg.DSN, "up"); err != nil {
//		return err
//	}
//	db, err := storage.Open(ctx, cfg)
//
// Unique constraint failures from either driver are recognised with
// IsUniqueViolation.
package storage
