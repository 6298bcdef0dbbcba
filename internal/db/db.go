// Package db owns the SQLite plumbing shared by the bookkeeping database
// and the trajectory archive: opening with the standard PRAGMAs and running
// embedded golang-migrate migrations. The bookkeeping database itself
// stores the trace being edited and queued simulation requests.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/sillywalks/internal/fsutil"
)

// DefaultPath is the bookkeeping database used by the CLI.
const DefaultPath = ".data.db"

//go:embed migrations/*.sql
var migrationsEmbed embed.FS

// MigrationsFS returns the bookkeeping migrations rooted at the migration
// files.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsEmbed, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations missing: %v", err))
	}
	return sub
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// OpenSQLite opens path with the modernc driver and applies the PRAGMAs
// every database in this module runs with.
func OpenSQLite(path string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return sqlDB, nil
}

// DB is the bookkeeping database.
type DB struct {
	*sql.DB

	// FS is consulted when validating simulation map paths.
	FS fsutil.FileSystem
}

// OpenDB opens (creating if needed) the bookkeeping database at path and
// migrates it to the latest schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(sqlDB, MigrationsFS()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &DB{DB: sqlDB, FS: fsutil.OSFileSystem{}}, nil
}

// MigrateUp migrates the bookkeeping schema to the latest version.
func (db *DB) MigrateUp() error { return MigrateUp(db.DB, MigrationsFS()) }

// MigrateDown rolls back the most recent bookkeeping migration.
func (db *DB) MigrateDown() error { return MigrateDown(db.DB, MigrationsFS()) }

// MigrateVersion reports the bookkeeping schema version.
func (db *DB) MigrateVersion() (uint, bool, error) { return MigrateVersion(db.DB, MigrationsFS()) }
