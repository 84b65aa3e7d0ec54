package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"cmsapi/internal/models"
)

type FileRepository interface {
	Create(ctx context.Context, f *models.GalleryFile) error
	GetByID(ctx context.Context, id int64) (*models.GalleryFile, error)
	List(ctx context.Context, limit, offset int) ([]*models.GalleryFile, error)
	UpdateTitle(ctx context.Context, id int64, title string) error
	Delete(ctx context.Context, id int64) error
}

type fileRepository struct {
	DB *sql.DB
}

func NewFileRepository(db *sql.DB) FileRepository {
	return &fileRepository{DB: db}
}

func (r *fileRepository) Create(ctx context.Context, f *models.GalleryFile) error {
	const q = `
		INSERT INTO gallery_files (title, file_path, size, uploaded_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uploaded_at
	`
	err := r.DB.QueryRowContext(ctx, q, f.Title, f.FilePath, f.Size, f.UploadedBy).
		Scan(&f.ID, &f.UploadedAt)
	return mapErr("gallery file create", err)
}

func (r *fileRepository) GetByID(ctx context.Context, id int64) (*models.GalleryFile, error) {
	var f models.GalleryFile
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, title, file_path, size, COALESCE(uploaded_by, 0), uploaded_at FROM gallery_files WHERE id = $1`, id,
	).Scan(&f.ID, &f.Title, &f.FilePath, &f.Size, &f.UploadedBy, &f.UploadedAt)
	if err != nil {
		return nil, mapErr("gallery file by id", err)
	}
	return &f, nil
}

// List returns newest uploads first.
func (r *fileRepository) List(ctx context.Context, limit, offset int) ([]*models.GalleryFile, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, title, file_path, size, COALESCE(uploaded_by, 0), uploaded_at
		FROM gallery_files
		ORDER BY uploaded_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("gallery file list: %w", err)
	}
	defer rows.Close()

	var out []*models.GalleryFile
	for rows.Next() {
		var f models.GalleryFile
		if err := rows.Scan(&f.ID, &f.Title, &f.FilePath, &f.Size, &f.UploadedBy, &f.UploadedAt); err != nil {
			return nil, fmt.Errorf("gallery file list scan: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (r *fileRepository) UpdateTitle(ctx context.Context, id int64, title string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE gallery_files SET title=$1 WHERE id=$2`, title, id)
	return expectOne("gallery file update", res, err)
}

func (r *fileRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM gallery_files WHERE id=$1`, id)
	return expectOne("gallery file delete", res, err)
}
