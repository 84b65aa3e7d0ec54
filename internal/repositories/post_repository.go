package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"cmsapi/internal/models"
)

// Visibility selects which posts a listing may return.
type Visibility int

const (
	// VisibilityPublic: published and not deleted.
	VisibilityPublic Visibility = iota
	// VisibilityMember: public posts plus every non-deleted post of ViewerID.
	VisibilityMember
	// VisibilityAll: everything, deleted rows only with IncludeDeleted.
	VisibilityAll
)

type PostFilter struct {
	Visibility     Visibility
	ViewerID       int64
	IncludeDeleted bool
	AuthorID       int64
	CategorySlug   string
	Limit          int
	Offset         int
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post, categoryIDs []int64) error
	// Update writes the editable columns; a nil categoryIDs leaves links untouched.
	Update(ctx context.Context, post *models.Post, categoryIDs []int64) error
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	List(ctx context.Context, f PostFilter) ([]*models.Post, error)
	SetPublished(ctx context.Context, id int64, published bool) error
	SetDeleted(ctx context.Context, id int64, deleted bool) error
}

type postRepository struct {
	DB *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{DB: db}
}

const postColumns = `
	p.id, p.author_id, u.username, p.title, p.body, p.excerpt, p.tags,
	COALESCE(p.thumbnail,''), p.slug, p.is_published, p.is_deleted,
	p.created_at, p.updated_at`

func scanPost(row rowScanner) (*models.Post, error) {
	p := &models.Post{}
	var tags pq.StringArray
	if err := row.Scan(
		&p.ID, &p.AuthorID, &p.AuthorUsername, &p.Title, &p.Body, &p.Excerpt, &tags,
		&p.Thumbnail, &p.Slug, &p.IsPublished, &p.IsDeleted,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Tags = []string(tags)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, nil
}

func (r *postRepository) Create(ctx context.Context, p *models.Post, categoryIDs []int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("post create begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const q = `
		INSERT INTO posts (author_id, title, body, excerpt, tags, thumbnail, slug, is_published, is_deleted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,FALSE)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, q,
		p.AuthorID, p.Title, p.Body, p.Excerpt, pq.Array(p.Tags), p.Thumbnail, p.Slug, p.IsPublished,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapErr("post create", err)
	}
	if err := linkCategories(ctx, tx, p.ID, categoryIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("post create commit: %w", err)
	}
	return nil
}

func (r *postRepository) Update(ctx context.Context, p *models.Post, categoryIDs []int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("post update begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const q = `
		UPDATE posts
		SET title=$1, body=$2, excerpt=$3, tags=$4, thumbnail=$5, is_published=$6, updated_at=NOW()
		WHERE id=$7
		RETURNING updated_at
	`
	err = tx.QueryRowContext(ctx, q,
		p.Title, p.Body, p.Excerpt, pq.Array(p.Tags), p.Thumbnail, p.IsPublished, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return mapErr("post update", err)
	}
	if categoryIDs != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM post_categories WHERE post_id=$1`, p.ID); err != nil {
			return fmt.Errorf("post update unlink categories: %w", err)
		}
		if err := linkCategories(ctx, tx, p.ID, categoryIDs); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("post update commit: %w", err)
	}
	return nil
}

// linkCategories silently skips ids that do not exist.
func linkCategories(ctx context.Context, tx DBTX, postID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `
		INSERT INTO post_categories (post_id, category_id)
		SELECT $1, id FROM categories WHERE id = ANY($2)
		ON CONFLICT DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, q, postID, pq.Array(ids)); err != nil {
		return fmt.Errorf("post link categories: %w", err)
	}
	return nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.author_id WHERE p.slug = $1`
	p, err := scanPost(r.DB.QueryRowContext(ctx, q, slug))
	if err != nil {
		return nil, mapErr("post by slug", err)
	}
	if err := r.attachCategories(ctx, []*models.Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postRepository) List(ctx context.Context, f PostFilter) ([]*models.Post, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch f.Visibility {
	case VisibilityPublic:
		where = append(where, "p.is_published = TRUE", "p.is_deleted = FALSE")
	case VisibilityMember:
		where = append(where, "p.is_deleted = FALSE",
			"(p.is_published = TRUE OR p.author_id = "+arg(f.ViewerID)+")")
	case VisibilityAll:
		if !f.IncludeDeleted {
			where = append(where, "p.is_deleted = FALSE")
		}
	}
	if f.AuthorID > 0 {
		where = append(where, "p.author_id = "+arg(f.AuthorID))
	}
	if f.CategorySlug != "" {
		where = append(where, `EXISTS (SELECT 1 FROM post_categories pc JOIN categories c ON c.id = pc.category_id
			WHERE pc.post_id = p.id AND c.slug = `+arg(f.CategorySlug)+`)`)
	}

	q := `SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.author_id`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY p.created_at DESC, p.id DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("post list: %w", err)
	}
	defer rows.Close()

	var out []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("post list scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("post list rows: %w", err)
	}
	if err := r.attachCategories(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepository) attachCategories(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Post, len(posts))
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		p.Categories = []models.Category{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	const q = `
		SELECT pc.post_id, c.id, c.name, COALESCE(c.description,''), c.slug
		FROM post_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.post_id = ANY($1)
		ORDER BY c.name
	`
	rows, err := r.DB.QueryContext(ctx, q, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("post categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			postID int64
			c      models.Category
		)
		if err := rows.Scan(&postID, &c.ID, &c.Name, &c.Description, &c.Slug); err != nil {
			return fmt.Errorf("post categories scan: %w", err)
		}
		if p, ok := byID[postID]; ok {
			p.Categories = append(p.Categories, c)
		}
	}
	return rows.Err()
}

func (r *postRepository) SetPublished(ctx context.Context, id int64, published bool) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE posts SET is_published=$1, updated_at=NOW() WHERE id=$2`, published, id)
	return expectOne("post set published", res, err)
}

// SetDeleted soft-deletes or restores a post. Deleting also unpublishes.
func (r *postRepository) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	q := `UPDATE posts SET is_deleted=$1, updated_at=NOW() WHERE id=$2`
	if deleted {
		q = `UPDATE posts SET is_deleted=$1, is_published=FALSE, updated_at=NOW() WHERE id=$2`
	}
	res, err := r.DB.ExecContext(ctx, q, deleted, id)
	return expectOne("post set deleted", res, err)
}
