package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"cmsapi/internal/models"
)

type CategoryRepository interface {
	Create(ctx context.Context, c *models.Category) error
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id int64) error
}

type categoryRepository struct {
	DB *sql.DB
}

func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{DB: db}
}

func (r *categoryRepository) Create(ctx context.Context, c *models.Category) error {
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO categories (name, description, slug) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.Description, c.Slug,
	).Scan(&c.ID)
	return mapErr("category create", err)
}

func (r *categoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var c models.Category
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(description,''), slug FROM categories WHERE slug = $1`, slug,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Slug)
	if err != nil {
		return nil, mapErr("category by slug", err)
	}
	return &c, nil
}

func (r *categoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, COALESCE(description,''), slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("category list: %w", err)
	}
	defer rows.Close()

	var out []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Slug); err != nil {
			return nil, fmt.Errorf("category list scan: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *categoryRepository) Update(ctx context.Context, c *models.Category) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE categories SET name=$1, description=$2, slug=$3 WHERE id=$4`,
		c.Name, c.Description, c.Slug, c.ID)
	return expectOne("category update", res, err)
}

func (r *categoryRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM categories WHERE id=$1`, id)
	return expectOne("category delete", res, err)
}
