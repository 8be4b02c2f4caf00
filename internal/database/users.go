package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type UserRow struct {
	Name         string
	PasswordHash string
	QuotaBytes   int64
	MaxFiles     int64
	IsAdmin      bool
}

func (s *PostgresStore) InsertUser(ctx context.Context, arg UserRow) error {
	query := `
		INSERT INTO users (name, password, quota, max_files, is_admin)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query,
		arg.Name,
		arg.PasswordHash,
		arg.QuotaBytes,
		arg.MaxFiles,
		arg.IsAdmin,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetUserRow(ctx context.Context, name string) (*UserRow, error) {
	query := `
		SELECT name, password, quota, max_files, is_admin
		FROM users
		WHERE name = $1
	`
	var user UserRow

	err := s.pool.QueryRow(ctx, query, name).Scan(
		&user.Name,
		&user.PasswordHash,
		&user.QuotaBytes,
		&user.MaxFiles,
		&user.IsAdmin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// ListUserIDs returns every user name. Used once at startup to seed the
// known-key set.
func (s *PostgresStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *PostgresStore) DeleteUserRow(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE name = $1`, name)
	return err
}

// userColumns is the set of columns the update helper accepts. The helper is
// never driven by external input, entity setters pass literal column names.
var userColumns = map[string]bool{
	"password":  true,
	"quota":     true,
	"max_files": true,
	"is_admin":  true,
}

type Field struct {
	Column string
	Value  interface{}
}

func (s *PostgresStore) UpdateUserFields(ctx context.Context, name string, fields []Field) error {
	if len(fields) == 0 {
		return nil
	}

	setParts := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+1)
	for i, f := range fields {
		if !userColumns[f.Column] {
			return fmt.Errorf("unknown users column %q", f.Column)
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", f.Column, i+1))
		args = append(args, f.Value)
	}
	args = append(args, name)

	query := fmt.Sprintf("UPDATE users SET %s WHERE name = $%d",
		strings.Join(setParts, ", "), len(args))
	_, err := s.pool.Exec(ctx, query, args...)
	return err
}
