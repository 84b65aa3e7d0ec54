package repositories

import (
	"context"

	"cmsapi/internal/models"
)

type OTPRepository interface {
	Create(ctx context.Context, otp *models.EmailOTP) error
	// FindLatestUnused locks the newest unused code matching all three keys.
	FindLatestUnused(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.EmailOTP, error)
	// MarkUsed flips is_used once; a second call reports ErrNotFound.
	MarkUsed(ctx context.Context, id int64) error
}

type otpRepository struct {
	db DBTX
}

func NewOTPRepository(db DBTX) OTPRepository {
	return &otpRepository{db: db}
}

func (r *otpRepository) Create(ctx context.Context, otp *models.EmailOTP) error {
	const q = `
		INSERT INTO email_otps (user_id, email, code, purpose, created_at, is_used)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, q,
		otp.UserID, otp.Email, otp.Code, string(otp.Purpose), otp.CreatedAt,
	).Scan(&otp.ID)
	return mapErr("otp create", err)
}

func (r *otpRepository) FindLatestUnused(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.EmailOTP, error) {
	const q = `
		SELECT id, user_id, email, code, purpose, created_at, is_used
		FROM email_otps
		WHERE LOWER(email) = LOWER($1) AND code = $2 AND purpose = $3 AND is_used = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE
	`
	var (
		o    models.EmailOTP
		purp string
	)
	err := r.db.QueryRowContext(ctx, q, email, code, string(purpose)).Scan(
		&o.ID, &o.UserID, &o.Email, &o.Code, &purp, &o.CreatedAt, &o.IsUsed,
	)
	if err != nil {
		return nil, mapErr("otp latest unused", err)
	}
	o.Purpose = models.OTPPurpose(purp)
	return &o, nil
}

func (r *otpRepository) MarkUsed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE email_otps SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`, id)
	return expectOne("otp mark used", res, err)
}
