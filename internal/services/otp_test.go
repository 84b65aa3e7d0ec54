package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmsapi/internal/apperr"
	"cmsapi/internal/models"
)

func TestOTPLedgerIssueAndConsume(t *testing.T) {
	clock := newClock()
	ledger := NewOTPLedger(clock.Now)
	store := newMemStore()
	user := store.add(&models.User{Email: "a@x.com", Status: models.StatusActive})
	ctx := context.Background()

	otp, err := ledger.Issue(ctx, store.OTPs(), user, user.Email, models.OTPPurposeVerify)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, otp.Code)
	assert.Equal(t, clock.Now(), otp.CreatedAt)
	assert.False(t, otp.IsUsed)

	used, err := ledger.Consume(ctx, store.OTPs(), "a@x.com", otp.Code, models.OTPPurposeVerify)
	require.NoError(t, err)
	assert.True(t, used.IsUsed)
	assert.True(t, store.otp(otp.ID).IsUsed)

	_, err = ledger.Consume(ctx, store.OTPs(), "a@x.com", otp.Code, models.OTPPurposeVerify)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOTPLedgerExpiredCodeStaysUnused(t *testing.T) {
	clock := newClock()
	ledger := NewOTPLedger(clock.Now)
	store := newMemStore()
	user := store.add(&models.User{Email: "a@x.com"})
	ctx := context.Background()

	otp, err := ledger.Issue(ctx, store.OTPs(), user, user.Email, models.OTPPurposeReset)
	require.NoError(t, err)

	clock.Advance(OTPValidity)
	assert.False(t, ledger.Expired(otp), "exactly at the window edge the code is still valid")
	clock.Advance(time.Second)
	_, err = ledger.Consume(ctx, store.OTPs(), "a@x.com", otp.Code, models.OTPPurposeReset)
	assert.ErrorIs(t, err, apperr.ErrExpired)
	assert.False(t, store.otp(otp.ID).IsUsed)
}

func TestOTPLedgerScopedByPurpose(t *testing.T) {
	ledger := NewOTPLedger(nil)
	store := newMemStore()
	user := store.add(&models.User{Email: "a@x.com"})
	ctx := context.Background()

	otp, err := ledger.Issue(ctx, store.OTPs(), user, user.Email, models.OTPPurposeVerify)
	require.NoError(t, err)
	_, err = ledger.Consume(ctx, store.OTPs(), "a@x.com", otp.Code, models.OTPPurposeReset)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
