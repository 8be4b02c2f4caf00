package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"filehost-backend/internal/database/migrations"
)

var (
	ErrUserExists = errors.New("user with this name already exists")
	ErrFileExists = errors.New("file with this id is already registered")
)

// PostgresStore executes the parameterized queries for the users/files table
// pair. It owns nothing but the pool handle; the pool lifecycle belongs to the
// caller.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}

// RunMigrations brings the schema up to date. Goose runs over database/sql, so
// a short-lived stdlib connection is opened next to the pool.
func RunMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
