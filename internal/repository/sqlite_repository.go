package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/lewtec/sinalizador/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteRepository keeps every dataset as one row of the datasets table
type SQLiteRepository struct {
	db *sql.DB
}

// GetDatabase opens a sqlite database. The store has a single writer, so one
// connection is enough and keeps ":memory:" databases alive across queries.
func GetDatabase(filename string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewSQLiteRepository wraps an already migrated database
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// OpenSQLiteRepository opens filename and brings its schema up to date
func OpenSQLiteRepository(filename string) (*SQLiteRepository, error) {
	db, err := GetDatabase(filename)
	if err != nil {
		return nil, fmt.Errorf("while opening database '%s': %w", filename, err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLiteRepository(db), nil
}

// Migrate applies the embedded migrations
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("while loading migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("while preparing migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("while preparing migrations: %w", err)
	}
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("while running migrations: %w", err)
	}
	log.Printf("sqlite: schema migrated")
	return nil
}

func (r *SQLiteRepository) Load(ctx context.Context, name string) ([]byte, error) {
	var document string
	err := r.db.QueryRowContext(ctx, "SELECT document FROM datasets WHERE name = ?", name).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("while loading dataset '%s': %w", name, err)
	}
	return []byte(document), nil
}

func (r *SQLiteRepository) Save(ctx context.Context, name string, doc []byte) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("while starting transaction: %w", err)
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `
insert into datasets (name, document, updated_at) values (?, ?, CURRENT_TIMESTAMP)
on conflict(name) do update set document=excluded.document, updated_at=excluded.updated_at
    `, name, string(doc))
	if err != nil {
		return fmt.Errorf("while saving dataset '%s': %w", name, err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

var _ domain.DatasetRepository = (*SQLiteRepository)(nil)
