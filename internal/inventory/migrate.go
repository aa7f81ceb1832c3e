package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/treykane/termgrid/internal/inventory/migrations"
)

// coreColumns must exist on a servers table created by an older termgrid for
// it to be adopted.
var coreColumns = []string{"id", "name", "host", "protocol", "username", "port", "os"}

// optionalColumns were added to the legacy table over time; adoption adds
// whichever are missing.
var optionalColumns = []string{"tags", "notes", "group"}

// runMigrations applies the embedded migrations. The migrate driver closes
// the database it is given, so it gets its own handle on path.
func runMigrations(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open migration handle: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return fmt.Errorf("set busy_timeout: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("prepare migration driver: %w", err)
	}
	src, err := iofs.New(migrations.Files, ".")
	if err != nil {
		driver.Close()
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("prepare migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// adoptLegacy prepares a database created before versioned migrations, which
// has a servers table but no migration bookkeeping. It reports whether the
// database was adopted.
func adoptLegacy(ctx context.Context, db *sql.DB) (bool, error) {
	hasServers, err := tableExists(ctx, db, "servers")
	if err != nil {
		return false, err
	}
	hasMigrations, err := tableExists(ctx, db, "schema_migrations")
	if err != nil {
		return false, err
	}
	if !hasServers || hasMigrations {
		return false, nil
	}

	cols, err := tableColumns(ctx, db, "servers")
	if err != nil {
		return false, err
	}
	for _, c := range coreColumns {
		if !cols[c] {
			return false, fmt.Errorf("incompatible schema: servers table has no %q column", c)
		}
	}
	for _, c := range optionalColumns {
		if cols[c] {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE servers ADD COLUMN %q TEXT DEFAULT ''`, c)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("add column %q: %w", c, err)
		}
	}
	return true, nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect table %s: %w", name, err)
	}
	return n > 0, nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("inspect columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
