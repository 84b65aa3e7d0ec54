package repositories

import (
	"context"
	"fmt"

	"cmsapi/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetBySlug(ctx context.Context, slug string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	SetVerified(ctx context.Context, id int64, verified bool) error
	UpdateStatus(ctx context.Context, id int64, status models.AccountStatus) error

	// ListActive hides locked and deleted accounts. ListAll returns locked
	// accounts too, and deleted ones only when includeDeleted is set.
	ListActive(ctx context.Context, limit, offset int) ([]*models.User, error)
	ListAll(ctx context.Context, includeDeleted bool, limit, offset int) ([]*models.User, error)
}

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `
	id, email, username, first_name, last_name, slug,
	COALESCE(bio,''), COALESCE(address,''), COALESCE(profile_pic,''),
	password_hash, status, is_verified, is_staff, is_superuser,
	joined_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var status string
	if err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.Slug,
		&u.Bio, &u.Address, &u.ProfilePic,
		&u.PasswordHash, &status, &u.IsVerified, &u.IsStaff, &u.IsSuperuser,
		&u.JoinedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Status = models.AccountStatus(status)
	return u, nil
}

func (r *userRepository) Create(ctx context.Context, u *models.User) error {
	const q = `
		INSERT INTO users (
			email, username, first_name, last_name, slug, bio, address,
			profile_pic, password_hash, status, is_verified, is_staff, is_superuser
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id, joined_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, q,
		u.Email, u.Username, u.FirstName, u.LastName, u.Slug, u.Bio, u.Address,
		u.ProfilePic, u.PasswordHash, string(u.Status), u.IsVerified, u.IsStaff, u.IsSuperuser,
	).Scan(&u.ID, &u.JoinedAt, &u.UpdatedAt)
	return mapErr("user create", err)
}

func (r *userRepository) getOne(ctx context.Context, op, where string, arg any) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	u, err := scanUser(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "user by id", "id = $1", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "user by email", "LOWER(email) = LOWER($1)", email)
}

func (r *userRepository) GetBySlug(ctx context.Context, slug string) (*models.User, error) {
	return r.getOne(ctx, "user by slug", "slug = $1", slug)
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user email exists: %w", err)
	}
	return exists, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, u *models.User) error {
	const q = `
		UPDATE users
		SET first_name=$1, last_name=$2, username=$3, bio=$4, address=$5,
			profile_pic=$6, updated_at=NOW()
		WHERE id=$7
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, q,
		u.FirstName, u.LastName, u.Username, u.Bio, u.Address, u.ProfilePic, u.ID,
	).Scan(&u.UpdatedAt)
	return mapErr("user update profile", err)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash=$1, updated_at=NOW() WHERE id=$2`, hash, id)
	return expectOne("user update password", res, err)
}

func (r *userRepository) SetVerified(ctx context.Context, id int64, verified bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_verified=$1, updated_at=NOW() WHERE id=$2`, verified, id)
	return expectOne("user set verified", res, err)
}

func (r *userRepository) UpdateStatus(ctx context.Context, id int64, status models.AccountStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	return expectOne("user update status", res, err)
}

func (r *userRepository) ListActive(ctx context.Context, limit, offset int) ([]*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE status = 'active' ORDER BY id LIMIT $1 OFFSET $2`
	return r.list(ctx, "user list active", q, limit, offset)
}

func (r *userRepository) ListAll(ctx context.Context, includeDeleted bool, limit, offset int) ([]*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE status <> 'deleted' ORDER BY id LIMIT $1 OFFSET $2`
	if includeDeleted {
		q = `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	}
	return r.list(ctx, "user list all", q, limit, offset)
}

func (r *userRepository) list(ctx context.Context, op, q string, limit, offset int) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

