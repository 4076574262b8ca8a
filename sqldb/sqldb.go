// Package sqldb implements the stores of package core with SQLite.
package sqldb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite3 "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/wansing/datacat/core"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open opens the SQLite database with the given DSN and migrates it to the latest schema version.
func Open(dsn string) (*sqlx.DB, error) {

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return db, nil
}

// Migrate applies all pending migrations.
func Migrate(db *sqlx.DB) error {

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	driver, err := migratesqlite3.WithInstance(db.DB, &migratesqlite3.Config{})
	if err != nil {
		return err
	}

	// don't close the migrator, it would close db
	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func mustPrepare(db *sqlx.DB, query string) *sqlx.Stmt {
	stmt, err := db.Preparex(query)
	if err != nil {
		panic(fmt.Sprintf("preparing %q: %v", query, err))
	}
	return stmt
}

// notFound wraps sql.ErrNoRows into core.ErrNotFound.
func notFound(err error, kind, ref string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, ref, core.ErrNotFound)
	}
	return err
}

// duplicate wraps unique constraint violations into core.ErrDuplicate.
func duplicate(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%v: %w", err, core.ErrDuplicate)
	}
	return err
}

type revisions struct {
	insert *sqlx.Stmt
}

func newRevisions(db *sqlx.DB) *revisions {
	return &revisions{
		insert: mustPrepare(db, "INSERT INTO revision (ts, author, message) VALUES (?, ?, ?)"),
	}
}

// add inserts rev within tx and sets rev.ID.
func (r *revisions) add(tx *sqlx.Tx, rev *core.Revision) error {
	res, err := tx.Stmtx(r.insert).Exec(rev.Timestamp, rev.Author, rev.Message)
	if err != nil {
		return err
	}
	rev.ID, err = res.LastInsertId()
	return err
}

// Catalog returns a CatalogDB whose stores all use db.
func Catalog(db *sqlx.DB) *core.CatalogDB {
	return &core.CatalogDB{
		GroupDB:   NewGroupDB(db),
		PackageDB: NewPackageDB(db),
		RoleDB:    NewRoleDB(db),
		UserDB:    NewUserDB(db),
	}
}
