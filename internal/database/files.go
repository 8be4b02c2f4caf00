package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type FileRow struct {
	ID          string
	Name        string
	ContentType string
	Size        int64
	Owner       string
	UploadTime  time.Time
	IsPublic    bool
	Extension   string
}

func (s *PostgresStore) InsertFileRow(ctx context.Context, arg FileRow) error {
	query := `
		INSERT INTO files (id, name, content_type, size, owner, upload_time, is_public, extension)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		arg.ID,
		arg.Name,
		arg.ContentType,
		arg.Size,
		arg.Owner,
		arg.UploadTime,
		arg.IsPublic,
		arg.Extension,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrFileExists
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetFileRow(ctx context.Context, id string) (*FileRow, error) {
	query := `
		SELECT id, name, content_type, size, owner, upload_time, is_public, extension
		FROM files
		WHERE id = $1
	`
	var file FileRow

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&file.ID,
		&file.Name,
		&file.ContentType,
		&file.Size,
		&file.Owner,
		&file.UploadTime,
		&file.IsPublic,
		&file.Extension,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &file, nil
}

// ListFileRowsByOwner is used when lazily materializing a user, to recompute
// used bytes and the owned-file set.
func (s *PostgresStore) ListFileRowsByOwner(ctx context.Context, owner string) ([]FileRow, error) {
	query := `
		SELECT id, name, content_type, size, owner, upload_time, is_public, extension
		FROM files
		WHERE owner = $1
	`
	rows, err := s.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []FileRow
	for rows.Next() {
		var file FileRow
		err := rows.Scan(
			&file.ID,
			&file.Name,
			&file.ContentType,
			&file.Size,
			&file.Owner,
			&file.UploadTime,
			&file.IsPublic,
			&file.Extension,
		)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

func (s *PostgresStore) ListFileIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM files`)
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

func (s *PostgresStore) DeleteFileRow(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	return err
}

var fileColumns = map[string]bool{
	"name":      true,
	"is_public": true,
}

func (s *PostgresStore) UpdateFileFields(ctx context.Context, id string, fields []Field) error {
	if len(fields) == 0 {
		return nil
	}

	setParts := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+1)
	for i, f := range fields {
		if !fileColumns[f.Column] {
			return fmt.Errorf("unknown files column %q", f.Column)
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", f.Column, i+1))
		args = append(args, f.Value)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE files SET %s WHERE id = $%d",
		strings.Join(setParts, ", "), len(args))
	_, err := s.pool.Exec(ctx, query, args...)
	return err
}
