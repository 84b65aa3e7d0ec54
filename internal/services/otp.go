package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"cmsapi/internal/apperr"
	"cmsapi/internal/models"
	"cmsapi/internal/repositories"
	"cmsapi/internal/utils"
)

// OTPValidity is how long an issued code may be consumed.
const OTPValidity = 10 * time.Minute

const otpDigits = 6

// OTPLedger issues and consumes one-time e-mail codes. It holds no state
// of its own; callers pass the repository, possibly bound to a transaction.
type OTPLedger struct {
	now  func() time.Time
	rand io.Reader
}

func NewOTPLedger(now func() time.Time) *OTPLedger {
	if now == nil {
		now = time.Now
	}
	return &OTPLedger{now: now, rand: rand.Reader}
}

func (l *OTPLedger) Issue(ctx context.Context, repo repositories.OTPRepository, user *models.User, email string, purpose models.OTPPurpose) (*models.EmailOTP, error) {
	code, err := utils.NumericCode(l.rand, otpDigits)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	otp := &models.EmailOTP{
		UserID:    user.ID,
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		CreatedAt: l.now().UTC(),
	}
	if err := repo.Create(ctx, otp); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}
	return otp, nil
}

// Consume finds the newest unused matching code and marks it used. Call it
// inside the same transaction as the change the code authorises.
func (l *OTPLedger) Consume(ctx context.Context, repo repositories.OTPRepository, email, code string, purpose models.OTPPurpose) (*models.EmailOTP, error) {
	otp, err := repo.FindLatestUnused(ctx, email, code, purpose)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.NotFound("invalid or already used code")
	}
	if err != nil {
		return nil, err
	}
	if l.Expired(otp) {
		return nil, apperr.Expired("code has expired")
	}
	if err := repo.MarkUsed(ctx, otp.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("invalid or already used code")
		}
		return nil, err
	}
	otp.IsUsed = true
	return otp, nil
}

func (l *OTPLedger) Expired(otp *models.EmailOTP) bool {
	return l.now().After(otp.CreatedAt.Add(OTPValidity))
}
