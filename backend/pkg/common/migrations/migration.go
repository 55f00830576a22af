package migrations

import (
	"database/sql"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/hyperledger/fabric-lib-go/common/flogging"
	"github.com/pkg/errors"
)

var logger = flogging.MustGetLogger("migrations")

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version VARCHAR(255) PRIMARY KEY,
	applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
)`

// RunMigrations applies all .sql files in dir of fsys to the database, in
// lexical order. It creates a 'schema_migrations' table to track applied
// migrations.
func RunMigrations(db *sql.DB, fsys fs.FS, dir string) error {
	// 1. Create migrations table if not exists
	if _, err := db.Exec(createVersionTable); err != nil {
		return errors.Wrap(err, "failed to create schema_migrations table")
	}

	// 2. Read migration files
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return errors.Wrap(err, "failed to read migrations directory")
	}

	var sqlFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			sqlFiles = append(sqlFiles, e.Name())
		}
	}
	sort.Strings(sqlFiles)

	// 3. Apply migrations
	for _, file := range sqlFiles {
		version := strings.TrimSuffix(file, ".sql")

		var exists int
		err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = $1", version).Scan(&exists)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, sql.ErrNoRows):
			return errors.Wrapf(err, "failed to check migration %s", file)
		}

		logger.Infof("Applying migration: %s", file)
		content, err := fs.ReadFile(fsys, path.Join(dir, file))
		if err != nil {
			return errors.Wrapf(err, "failed to read migration file %s", file)
		}

		if err := apply(db, version, string(content)); err != nil {
			return errors.WithMessagef(err, "migration %s", file)
		}
	}

	return nil
}

func apply(db *sql.DB, version, content string) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	if _, err := tx.Exec(content); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to execute")
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to record")
	}

	return errors.Wrap(tx.Commit(), "failed to commit")
}
