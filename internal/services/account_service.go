package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"go.uber.org/zap"

	"cmsapi/internal/apperr"
	"cmsapi/internal/authz"
	"cmsapi/internal/mail"
	"cmsapi/internal/metrics"
	"cmsapi/internal/models"
	"cmsapi/internal/repositories"
	"cmsapi/internal/utils"
)

const profilePictureDir = "profile_pics"

type AccountService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	VerifyEmail(ctx context.Context, email, code string) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error

	LockAccount(ctx context.Context, actor *models.User, targetSlug string) (*models.User, error)
	UnlockAccount(ctx context.Context, actor *models.User, targetSlug string) (*models.User, error)
	SoftDelete(ctx context.Context, actor *models.User, targetSlug string) (*models.User, error)
	Restore(ctx context.Context, actor *models.User, targetSlug string) (*models.User, error)

	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetBySlug(ctx context.Context, actor *models.User, slug string) (*models.User, error)
	List(ctx context.Context, actor *models.User, includeDeleted bool, limit, offset int) ([]*models.User, error)
	UpdateProfile(ctx context.Context, actor *models.User, slug string, req models.UpdateProfileRequest) (*models.User, error)
	SetProfilePicture(ctx context.Context, actor *models.User, slug string, upload models.Upload) (*models.User, error)
}

// AccountDeps wires an AccountService. Outbox, Throttle, Files and Log are
// optional.
type AccountDeps struct {
	Store    repositories.Store
	Hasher   PasswordHasher
	Tokens   TokenService
	Ledger   *OTPLedger
	Policy   PasswordPolicy
	Outbox   mail.Outbox
	Throttle mail.Throttle
	Files    FileStore
	Log      *zap.Logger
}

type accountService struct {
	store    repositories.Store
	hasher   PasswordHasher
	tokens   TokenService
	ledger   *OTPLedger
	policy   PasswordPolicy
	outbox   mail.Outbox
	throttle mail.Throttle
	files    FileStore
	log      *zap.Logger
}

func NewAccountService(d AccountDeps) AccountService {
	if d.Ledger == nil {
		d.Ledger = NewOTPLedger(nil)
	}
	if d.Policy.MinLength == 0 {
		d.Policy = DefaultPasswordPolicy()
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &accountService{
		store:    d.Store,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		ledger:   d.Ledger,
		policy:   d.Policy,
		outbox:   d.Outbox,
		throttle: d.Throttle,
		files:    d.Files,
		log:      d.Log.Named("accounts"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *accountService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Username = strings.TrimSpace(req.Username)

	err := validation.ValidateStruct(&req,
		validation.Field(&req.Email, validation.Required, is.Email),
		validation.Field(&req.Username, validation.Required, validation.Length(1, 150)),
		validation.Field(&req.FirstName, validation.Length(0, 150)),
		validation.Field(&req.LastName, validation.Length(0, 150)),
		validation.Field(&req.Password, validation.Required),
		validation.Field(&req.ConfirmPassword, validation.Required),
	)
	if err != nil {
		return nil, apperr.FromValidation(err)
	}
	if req.Password != req.ConfirmPassword {
		return nil, apperr.Field("confirm_password", "passwords do not match")
	}
	if err := s.policy.Validate("password", req.Password, personalFragments(req.FirstName, req.LastName, req.Email)...); err != nil {
		return nil, err
	}

	exists, err := s.store.Users().EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Field("email", "an account with this email already exists")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	slug, err := utils.UniqueSlug(req.Username, "user", 8)
	if err != nil {
		return nil, fmt.Errorf("generate slug: %w", err)
	}

	user := &models.User{
		Email:        req.Email,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Slug:         slug,
		PasswordHash: hash,
		Status:       models.StatusActive,
	}
	var otp *models.EmailOTP
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return apperr.Field("email", "an account with this email already exists")
			}
			return err
		}
		otp, err = s.ledger.Issue(ctx, tx.OTPs(), user, user.Email, models.OTPPurposeVerify)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.AuthEvent(metrics.EventRegistered)
	s.log.Info("account registered", zap.Int64("user_id", user.ID), zap.String("slug", user.Slug))
	s.sendCode(ctx, user, otp, mail.PurposeVerify)
	return user, nil
}

// sendCode hands the code to the outbox. Failures are logged only.
func (s *accountService) sendCode(ctx context.Context, user *models.User, otp *models.EmailOTP, purpose mail.Purpose) {
	if s.outbox == nil {
		s.log.Warn("no mail outbox configured, code not sent", zap.Int64("user_id", user.ID))
		return
	}
	name := user.FirstName
	if name == "" {
		name = user.Username
	}
	msg := mail.Message{
		To:      otp.Email,
		Purpose: purpose,
		Context: map[string]string{"name": name, "otp": otp.Code},
	}
	if err := s.outbox.Enqueue(ctx, msg); err != nil {
		metrics.MailJob(metrics.MailDropped)
		s.log.Warn("failed to enqueue email",
			zap.Int64("user_id", user.ID), zap.String("purpose", string(purpose)), zap.Error(err))
	}
}

func (s *accountService) VerifyEmail(ctx context.Context, email, code string) (*models.User, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, apperr.Validation(map[string]string{"email": "required", "otp": "required"})
	}

	var user *models.User
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		otp, err := s.ledger.Consume(ctx, tx.OTPs(), email, code, models.OTPPurposeVerify)
		if err != nil {
			return err
		}
		user, err = s.loadForUpdate(ctx, tx, otp.UserID)
		if err != nil {
			return err
		}
		if err := tx.Users().SetVerified(ctx, user.ID, true); err != nil {
			return err
		}
		user.IsVerified = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.AuthEvent(metrics.EventVerified)
	s.log.Info("email verified", zap.Int64("user_id", user.ID))
	return user, nil
}

func (s *accountService) loadForUpdate(ctx context.Context, tx repositories.Store, id int64) (*models.User, error) {
	user, err := tx.Users().GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.NotFound("account not found")
	}
	if err != nil {
		return nil, err
	}
	if user.IsDeleted() {
		return nil, apperr.NotFound("account not found")
	}
	return user, nil
}

func (s *accountService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return apperr.InvalidState("email is already verified")
	}
	if s.throttle != nil {
		ok, err := s.throttle.Allow(ctx, "verify:"+email)
		if err != nil {
			s.log.Warn("resend throttle unavailable", zap.Error(err))
		} else if !ok {
			return apperr.Throttled("please wait before requesting another code")
		}
	}
	otp, err := s.ledger.Issue(ctx, s.store.OTPs(), user, email, models.OTPPurposeVerify)
	if err != nil {
		return err
	}
	s.sendCode(ctx, user, otp, mail.PurposeVerify)
	return nil
}

// findByEmail treats deleted accounts as missing.
func (s *accountService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, apperr.Field("email", "email is required")
	}
	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && user.IsDeleted()) {
		return nil, apperr.NotFound("no account with this email")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *accountService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = normalizeEmail(email)
	fail := func(reason string) error {
		metrics.AuthEvent(metrics.EventLoginFailed)
		s.log.Info("login rejected", zap.String("reason", reason))
		return apperr.Credentials("invalid email or password")
	}

	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil, fail("unknown email")
	}
	if err != nil {
		return nil, nil, err
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, nil, fail("password mismatch")
	}
	if user.IsDeleted() {
		return nil, nil, fail("deleted account")
	}
	if !user.IsActive() {
		metrics.AuthEvent(metrics.EventLoginFailed)
		return nil, nil, apperr.Inactive("account is locked")
	}
	if !user.IsVerified {
		metrics.AuthEvent(metrics.EventLoginFailed)
		return nil, nil, apperr.Unverified("email address is not verified")
	}

	pair, err := s.tokens.IssueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	metrics.AuthEvent(metrics.EventLoginOK)
	s.log.Info("login ok", zap.Int64("user_id", user.ID))
	return s.withURL(user), pair, nil
}

func (s *accountService) RefreshTokens(_ context.Context, refreshToken string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperr.Field("refresh", "refresh token is required")
	}
	return s.tokens.Refresh(refreshToken)
}

func (s *accountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	otp, err := s.ledger.Issue(ctx, s.store.OTPs(), user, email, models.OTPPurposeReset)
	if err != nil {
		return err
	}
	metrics.AuthEvent(metrics.EventResetRequest)
	s.sendCode(ctx, user, otp, mail.PurposeReset)
	return nil
}

func (s *accountService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return apperr.Validation(map[string]string{"email": "required", "otp": "required"})
	}

	var userID int64
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		otp, err := s.ledger.Consume(ctx, tx.OTPs(), email, code, models.OTPPurposeReset)
		if err != nil {
			return err
		}
		user, err := s.loadForUpdate(ctx, tx, otp.UserID)
		if err != nil {
			return err
		}
		if err := s.policy.Validate("new_password", newPassword, personalFragments(user.FirstName, user.LastName, user.Email)...); err != nil {
			return err
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		userID = user.ID
		return tx.Users().UpdatePassword(ctx, user.ID, hash)
	})
	if err != nil {
		return err
	}
	metrics.AuthEvent(metrics.EventPasswordReset)
	s.log.Info("password reset", zap.Int64("user_id", userID))
	return nil
}

func (s *accountService) target(ctx context.Context, slug string) (*models.User, error) {
	user, err := s.store.Users().GetBySlug(ctx, slug)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.NotFound("account not found")
	}
	return user, err
}

// transition moves target to status "to" after the guard has passed.
func (s *accountService) transition(ctx context.Context, target *models.User, to models.AccountStatus, event string) (*models.User, error) {
	if target.Status == to {
		return nil, apperr.InvalidState(fmt.Sprintf("account is already %s", to))
	}
	if target.IsDeleted() {
		return nil, apperr.InvalidState("account is deleted; restore it first")
	}
	if !canTransition(target.Status, to) {
		return nil, apperr.InvalidState(fmt.Sprintf("account cannot go from %s to %s", target.Status, to))
	}
	return s.setStatus(ctx, target, to, event)
}

func (s *accountService) setStatus(ctx context.Context, target *models.User, to models.AccountStatus, event string) (*models.User, error) {
	if err := s.store.Users().UpdateStatus(ctx, target.ID, to); err != nil {
		return nil, err
	}
	s.log.Info("account status changed",
		zap.Int64("user_id", target.ID), zap.String("from", string(target.Status)), zap.String("to", string(to)))
	target.Status = to
	metrics.AuthEvent(event)
	return target, nil
}

func (s *accountService) LockAccount(ctx context.Context, actor *models.User, targetSlug string) (*models.User, error) {
	if err := authz.Authorize(actor, authz.ActionLockAccount, 0); err != nil {
		return nil, err
	}
	target, err := s.target(ctx, targetSlug)
	if err != nil {
		return nil, err
	}
	if target.IsSuperuser {
		return nil, apperr.Forbidden("superuser accounts cannot be locked")
	}
	return s.transition(ctx, target, models.StatusLocked, metrics.EventLocked)
}

func (s *accountService) UnlockAccount(ctx context.Context, actor *models.User, targetSlug string) (*models.User, error) {
	if err := authz.Authorize(actor, authz.ActionUnlockAccount, 0); err != nil {
		return nil, err
	}
	target, err := s.target(ctx, targetSlug)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, target, models.StatusActive, metrics.EventUnlocked)
}

func (s *accountService) SoftDelete(ctx context.Context, actor *models.User, targetSlug string) (*models.User, error) {
	target, err := s.target(ctx, targetSlug)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ActionDeleteProfile, target.ID); err != nil {
		return nil, err
	}
	return s.transition(ctx, target, models.StatusDeleted, metrics.EventDeleted)
}

// Restore clears the tombstone. The account comes back locked.
func (s *accountService) Restore(ctx context.Context, actor *models.User, targetSlug string) (*models.User, error) {
	if err := authz.Authorize(actor, authz.ActionRestoreAccount, 0); err != nil {
		return nil, err
	}
	target, err := s.target(ctx, targetSlug)
	if err != nil {
		return nil, err
	}
	if target.Status != restoreTransition.from {
		return nil, apperr.InvalidState("account is not deleted")
	}
	return s.setStatus(ctx, target, restoreTransition.to, metrics.EventRestored)
}

// withURL fills the public picture URL when a file store is configured.
func (s *accountService) withURL(u *models.User) *models.User {
	if u != nil && s.files != nil && u.ProfilePic != "" {
		u.PictureURL = s.files.URL(u.ProfilePic)
	}
	return u
}

func (s *accountService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.NotFound("account not found")
	}
	return s.withURL(user), err
}

// GetBySlug hides deleted accounts from everyone but admins.
func (s *accountService) GetBySlug(ctx context.Context, actor *models.User, slug string) (*models.User, error) {
	user, err := s.target(ctx, slug)
	if err != nil {
		return nil, err
	}
	if user.IsDeleted() && !authz.IsAdmin(actor) {
		return nil, apperr.NotFound("account not found")
	}
	return s.withURL(user), nil
}

func (s *accountService) List(ctx context.Context, actor *models.User, includeDeleted bool, limit, offset int) ([]*models.User, error) {
	var (
		users []*models.User
		err   error
	)
	switch {
	case authz.Allowed(actor, authz.ActionListAccounts, 0):
		users, err = s.store.Users().ListAll(ctx, includeDeleted, limit, offset)
	case includeDeleted:
		return nil, apperr.Forbidden("only admins may list deleted accounts")
	default:
		users, err = s.store.Users().ListActive(ctx, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		s.withURL(u)
	}
	return users, nil
}

func (s *accountService) editable(ctx context.Context, actor *models.User, slug string) (*models.User, error) {
	user, err := s.GetBySlug(ctx, actor, slug)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ActionUpdateProfile, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *accountService) UpdateProfile(ctx context.Context, actor *models.User, slug string, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.editable(ctx, actor, slug)
	if err != nil {
		return nil, err
	}
	err = validation.ValidateStruct(&req,
		validation.Field(&req.Username, validation.NilOrNotEmpty, validation.Length(1, 150)),
		validation.Field(&req.FirstName, validation.Length(0, 150)),
		validation.Field(&req.LastName, validation.Length(0, 150)),
		validation.Field(&req.Address, validation.Length(0, 255)),
	)
	if err != nil {
		return nil, apperr.FromValidation(err)
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	apply(&user.FirstName, req.FirstName)
	apply(&user.LastName, req.LastName)
	apply(&user.Username, req.Username)
	apply(&user.Bio, req.Bio)
	apply(&user.Address, req.Address)

	if err := s.store.Users().UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *accountService) SetProfilePicture(ctx context.Context, actor *models.User, slug string, upload models.Upload) (*models.User, error) {
	if s.files == nil {
		return nil, errors.New("file storage is not configured")
	}
	user, err := s.editable(ctx, actor, slug)
	if err != nil {
		return nil, err
	}
	path, _, err := s.files.Save(ctx, upload.Reader, profilePictureDir, upload.Filename)
	if err != nil {
		return nil, err
	}
	old := user.ProfilePic
	user.ProfilePic = path
	if err := s.store.Users().UpdateProfile(ctx, user); err != nil {
		_ = s.files.Remove(path)
		return nil, err
	}
	if old != "" {
		if err := s.files.Remove(old); err != nil {
			s.log.Warn("failed to remove old profile picture", zap.String("path", old), zap.Error(err))
		}
	}
	return s.withURL(user), nil
}
