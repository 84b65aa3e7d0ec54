package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"cmsapi/internal/apperr"
	"cmsapi/internal/mail"
	"cmsapi/internal/models"
)

type fixture struct {
	svc    AccountService
	store  *memStore
	outbox *captureOutbox
	clock  *fakeClock
	hasher PasswordHasher
	tokens TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newClock()
	f := &fixture{
		store:  newMemStore(),
		outbox: &captureOutbox{},
		clock:  clock,
		hasher: NewBcryptHasher(bcrypt.MinCost),
		tokens: NewTokenService("test-secret", 15*time.Minute, 7*24*time.Hour, clock.Now),
	}
	f.svc = NewAccountService(AccountDeps{
		Store:    f.store,
		Hasher:   f.hasher,
		Tokens:   f.tokens,
		Ledger:   NewOTPLedger(clock.Now),
		Outbox:   f.outbox,
		Throttle: mail.NewMemoryThrottle(time.Minute),
		Files:    newMemFiles(),
	})
	return f
}

func (f *fixture) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), models.RegisterRequest{
		Email: email, Username: "alice", Password: password, ConfirmPassword: password,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) registerVerified(t *testing.T, email, password string) *models.User {
	t.Helper()
	u := f.register(t, email, password)
	_, err := f.svc.VerifyEmail(context.Background(), email, f.outbox.lastCode(email, mail.PurposeVerify))
	require.NoError(t, err)
	return f.store.user(u.ID)
}

func (f *fixture) admin() *models.User {
	return f.store.add(&models.User{Email: "admin@x.com", Username: "admin", Status: models.StatusActive, IsVerified: true, IsStaff: true})
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), err.Error())
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "a@x.com", "Aa1!aaaa")
	assert.True(t, u.IsActive())
	assert.False(t, u.IsVerified)
	assert.Regexp(t, `^alice-[0-9a-f]{8}$`, u.Slug)

	code := f.outbox.lastCode("a@x.com", mail.PurposeVerify)
	assert.Regexp(t, `^\d{6}$`, code)

	_, _, err := f.svc.Login(ctx, "a@x.com", "Aa1!aaaa")
	assertKind(t, err, apperr.KindAccountUnverified)

	verified, err := f.svc.VerifyEmail(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	user, pair, err := f.svc.Login(ctx, "A@X.com", "Aa1!aaaa")
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)

	claims, err := f.tokens.ParseAccess(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, models.RegisterRequest{Email: "a@x.com", Username: "a", Password: "Aa1!aaaa", ConfirmPassword: "Aa1!aaab"})
	assertKind(t, err, apperr.KindValidation)
	assert.Contains(t, err.(*apperr.Error).Fields, "confirm_password")

	_, err = f.svc.Register(ctx, models.RegisterRequest{Email: "not-an-email", Username: "a", Password: "Aa1!aaaa", ConfirmPassword: "Aa1!aaaa"})
	assertKind(t, err, apperr.KindValidation)
	assert.Contains(t, err.(*apperr.Error).Fields, "email")

	_, err = f.svc.Register(ctx, models.RegisterRequest{Email: "b@x.com", Username: "b", Password: "password", ConfirmPassword: "password"})
	assertKind(t, err, apperr.KindValidation)
	assert.Contains(t, err.(*apperr.Error).Fields, "password")

	f.register(t, "a@x.com", "Aa1!aaaa")
	_, err = f.svc.Register(ctx, models.RegisterRequest{Email: "A@x.com", Username: "a", Password: "Aa1!aaaa", ConfirmPassword: "Aa1!aaaa"})
	assertKind(t, err, apperr.KindValidation)
	assert.Contains(t, err.(*apperr.Error).Fields, "email")
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	f := newFixture(t)
	f.outbox.err = assert.AnError
	u := f.register(t, "a@x.com", "Aa1!aaaa")
	assert.NotZero(t, u.ID)
}

func TestVerifyCodeExpiryBoundary(t *testing.T) {
	t.Run("accepted at 9m59s", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "a@x.com", "Aa1!aaaa")
		f.clock.Advance(9*time.Minute + 59*time.Second)
		_, err := f.svc.VerifyEmail(context.Background(), "a@x.com", f.outbox.lastCode("a@x.com", mail.PurposeVerify))
		assert.NoError(t, err)
	})
	t.Run("rejected at 10m01s", func(t *testing.T) {
		f := newFixture(t)
		u := f.register(t, "a@x.com", "Aa1!aaaa")
		f.clock.Advance(10*time.Minute + time.Second)
		_, err := f.svc.VerifyEmail(context.Background(), "a@x.com", f.outbox.lastCode("a@x.com", mail.PurposeVerify))
		assertKind(t, err, apperr.KindExpired)
		assert.False(t, f.store.user(u.ID).IsVerified)
	})
}

func TestVerifyWrongCode(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "Aa1!aaaa")
	code := f.outbox.lastCode("a@x.com", mail.PurposeVerify)
	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	_, err := f.svc.VerifyEmail(context.Background(), "a@x.com", wrong)
	assertKind(t, err, apperr.KindNotFound)
}

func TestVerifyCodeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "Aa1!aaaa")
	code := f.outbox.lastCode("a@x.com", mail.PurposeVerify)

	_, err := f.svc.VerifyEmail(context.Background(), "a@x.com", code)
	require.NoError(t, err)
	_, err = f.svc.VerifyEmail(context.Background(), "a@x.com", code)
	assertKind(t, err, apperr.KindNotFound)
}

func TestVerifyConcurrentSubmissions(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "Aa1!aaaa")
	code := f.outbox.lastCode("a@x.com", mail.PurposeVerify)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.VerifyEmail(context.Background(), "a@x.com", code)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
	for _, err := range errs {
		assertKind(t, err, apperr.KindNotFound)
	}
}

func TestVerifyIsAtomic(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "a@x.com", "Aa1!aaaa")
	code := f.outbox.lastCode("a@x.com", mail.PurposeVerify)

	f.store.d.failSetVerified = true
	_, err := f.svc.VerifyEmail(context.Background(), "a@x.com", code)
	require.Error(t, err)
	assert.False(t, f.store.user(u.ID).IsVerified)

	f.store.d.failSetVerified = false
	_, err = f.svc.VerifyEmail(context.Background(), "a@x.com", code)
	assert.NoError(t, err, "code must still be usable after a rolled back verification")
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@x.com", "Aa1!aaaa")

	require.NoError(t, f.svc.ResendVerification(ctx, "a@x.com"))
	assertKind(t, f.svc.ResendVerification(ctx, "a@x.com"), apperr.KindThrottled)
	assertKind(t, f.svc.ResendVerification(ctx, "ghost@x.com"), apperr.KindNotFound)
	assert.Len(t, f.outbox.msgs, 2)

	_, err := f.svc.VerifyEmail(ctx, "a@x.com", f.outbox.lastCode("a@x.com", mail.PurposeVerify))
	require.NoError(t, err)
	assertKind(t, f.svc.ResendVerification(ctx, "a@x.com"), apperr.KindInvalidState)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.registerVerified(t, "a@x.com", "Aa1!aaaa")

	_, _, err := f.svc.Login(ctx, "ghost@x.com", "Aa1!aaaa")
	assertKind(t, err, apperr.KindInvalidCredentials)
	_, _, err = f.svc.Login(ctx, "a@x.com", "Wrong1!pass")
	assertKind(t, err, apperr.KindInvalidCredentials)

	admin := f.admin()
	_, err = f.svc.LockAccount(ctx, admin, u.Slug)
	require.NoError(t, err)
	_, _, err = f.svc.Login(ctx, "a@x.com", "Aa1!aaaa")
	assertKind(t, err, apperr.KindAccountInactive)

	_, err = f.svc.SoftDelete(ctx, admin, u.Slug)
	require.NoError(t, err)
	_, _, err = f.svc.Login(ctx, "a@x.com", "Aa1!aaaa")
	assertKind(t, err, apperr.KindInvalidCredentials)
}

func TestLockUnlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	admin := f.admin()

	_, err := f.svc.LockAccount(ctx, u, u.Slug)
	assertKind(t, err, apperr.KindForbidden)

	locked, err := f.svc.LockAccount(ctx, admin, u.Slug)
	require.NoError(t, err)
	assert.False(t, locked.IsActive())

	_, err = f.svc.LockAccount(ctx, admin, u.Slug)
	assertKind(t, err, apperr.KindInvalidState)

	unlocked, err := f.svc.UnlockAccount(ctx, admin, u.Slug)
	require.NoError(t, err)
	assert.True(t, unlocked.IsActive())

	_, err = f.svc.UnlockAccount(ctx, admin, u.Slug)
	assertKind(t, err, apperr.KindInvalidState)

	_, err = f.svc.LockAccount(ctx, admin, "nobody")
	assertKind(t, err, apperr.KindNotFound)
}

func TestSuperuserCannotBeLocked(t *testing.T) {
	f := newFixture(t)
	root := f.store.add(&models.User{Email: "root@x.com", Status: models.StatusActive, IsVerified: true, IsSuperuser: true})
	_, err := f.svc.LockAccount(context.Background(), f.admin(), root.Slug)
	assertKind(t, err, apperr.KindForbidden)
	assert.True(t, f.store.user(root.ID).IsActive())
}

func TestSoftDeleteAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	other := f.store.add(&models.User{Email: "o@x.com", Status: models.StatusActive, IsVerified: true})
	admin := f.admin()

	_, err := f.svc.SoftDelete(ctx, other, u.Slug)
	assertKind(t, err, apperr.KindForbidden)

	deleted, err := f.svc.SoftDelete(ctx, u, u.Slug)
	require.NoError(t, err)
	stored := f.store.user(u.ID)
	assert.True(t, stored.IsDeleted())
	assert.False(t, stored.IsActive())
	assert.True(t, deleted.IsDeleted())

	_, err = f.svc.SoftDelete(ctx, admin, u.Slug)
	assertKind(t, err, apperr.KindInvalidState)

	_, err = f.svc.UnlockAccount(ctx, admin, u.Slug)
	assertKind(t, err, apperr.KindInvalidState)

	_, err = f.svc.GetBySlug(ctx, nil, u.Slug)
	assertKind(t, err, apperr.KindNotFound)
	_, err = f.svc.GetBySlug(ctx, admin, u.Slug)
	assert.NoError(t, err)

	_, err = f.svc.Restore(ctx, u, u.Slug)
	assertKind(t, err, apperr.KindForbidden)

	restored, err := f.svc.Restore(ctx, admin, u.Slug)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted())
	assert.False(t, restored.IsActive())
	assert.True(t, f.store.user(u.ID).IsVerified)

	_, err = f.svc.Restore(ctx, admin, u.Slug)
	assertKind(t, err, apperr.KindInvalidState)
}

func TestLockDeletedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	admin := f.admin()

	_, err := f.svc.SoftDelete(ctx, u, u.Slug)
	require.NoError(t, err)

	_, err = f.svc.LockAccount(ctx, admin, u.Slug)
	assertKind(t, err, apperr.KindInvalidState)
	assert.True(t, f.store.user(u.ID).IsDeleted())

	for from := range AccountTransitions {
		assert.NotEqual(t, models.StatusDeleted, from)
	}
	assert.False(t, canTransition(models.StatusDeleted, models.StatusLocked))
	assert.False(t, canTransition(models.StatusDeleted, models.StatusActive))
}

func TestDeletedImpliesInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin()
	u := f.registerVerified(t, "a@x.com", "Aa1!aaaa")

	check := func() {
		for _, acc := range f.store.Users().(memUsers).list(func(*models.User) bool { return true }, 0, 0) {
			if acc.IsDeleted() {
				assert.False(t, acc.IsActive(), acc.Email)
			}
		}
	}
	steps := []func() error{
		func() error { _, err := f.svc.LockAccount(ctx, admin, u.Slug); return err },
		func() error { _, err := f.svc.SoftDelete(ctx, admin, u.Slug); return err },
		func() error { _, err := f.svc.UnlockAccount(ctx, admin, u.Slug); return err },
		func() error { _, err := f.svc.Restore(ctx, admin, u.Slug); return err },
		func() error { _, err := f.svc.UnlockAccount(ctx, admin, u.Slug); return err },
		func() error { _, err := f.svc.SoftDelete(ctx, u, u.Slug); return err },
	}
	for _, step := range steps {
		_ = step()
		check()
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "a@x.com", "Aa1!aaaa")

	assertKind(t, f.svc.RequestPasswordReset(ctx, "ghost@x.com"), apperr.KindNotFound)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "a@x.com"))
	code := f.outbox.lastCode("a@x.com", mail.PurposeReset)
	require.NotEmpty(t, code)

	// A verify code cannot be used for a reset.
	assertKind(t, f.svc.ResetPassword(ctx, "a@x.com", f.outbox.lastCode("a@x.com", mail.PurposeVerify), "Nn2@nnnnn"), apperr.KindNotFound)

	// Policy failure rolls back and keeps the code usable.
	assertKind(t, f.svc.ResetPassword(ctx, "a@x.com", code, "weak"), apperr.KindValidation)
	require.NoError(t, f.svc.ResetPassword(ctx, "a@x.com", code, "Nn2@nnnnn"))

	_, _, err := f.svc.Login(ctx, "a@x.com", "Aa1!aaaa")
	assertKind(t, err, apperr.KindInvalidCredentials)
	_, _, err = f.svc.Login(ctx, "a@x.com", "Nn2@nnnnn")
	assert.NoError(t, err)

	assertKind(t, f.svc.ResetPassword(ctx, "a@x.com", code, "Zz3#zzzzz"), apperr.KindNotFound)
}

func TestPasswordResetExpiredCodeKeepsHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	before := f.store.user(u.ID).PasswordHash

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "a@x.com"))
	f.clock.Advance(10*time.Minute + time.Second)

	err := f.svc.ResetPassword(ctx, "a@x.com", f.outbox.lastCode("a@x.com", mail.PurposeReset), "Nn2@nnnnn")
	assertKind(t, err, apperr.KindExpired)
	assert.Equal(t, before, f.store.user(u.ID).PasswordHash)
}

func TestRefreshTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	_, pair, err := f.svc.Login(ctx, "a@x.com", "Aa1!aaaa")
	require.NoError(t, err)

	next, err := f.svc.RefreshTokens(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, next.Access)

	_, err = f.svc.RefreshTokens(ctx, pair.Access)
	assertKind(t, err, apperr.KindInvalidToken)
	_, err = f.svc.RefreshTokens(ctx, "")
	assertKind(t, err, apperr.KindValidation)
}

func TestListAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin()
	u := f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	_, err := f.svc.SoftDelete(ctx, u, u.Slug)
	require.NoError(t, err)

	public, err := f.svc.List(ctx, nil, false, 50, 0)
	require.NoError(t, err)
	assert.Len(t, public, 1)

	_, err = f.svc.List(ctx, nil, true, 50, 0)
	assertKind(t, err, apperr.KindForbidden)

	all, err := f.svc.List(ctx, admin, true, 50, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateProfileAndPicture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.registerVerified(t, "a@x.com", "Aa1!aaaa")
	other := f.store.add(&models.User{Email: "o@x.com", Status: models.StatusActive, IsVerified: true})

	bio := "  writes things  "
	updated, err := f.svc.UpdateProfile(ctx, u, u.Slug, models.UpdateProfileRequest{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "writes things", updated.Bio)
	assert.Equal(t, "alice", updated.Username)

	_, err = f.svc.UpdateProfile(ctx, other, u.Slug, models.UpdateProfileRequest{Bio: &bio})
	assertKind(t, err, apperr.KindForbidden)

	empty := ""
	_, err = f.svc.UpdateProfile(ctx, u, u.Slug, models.UpdateProfileRequest{Username: &empty})
	assertKind(t, err, apperr.KindValidation)

	withPic, err := f.svc.SetProfilePicture(ctx, u, u.Slug, models.Upload{Reader: strings.NewReader("png"), Filename: "me.png"})
	require.NoError(t, err)
	assert.Contains(t, withPic.ProfilePic, "profile_pics/")
	assert.Equal(t, withPic.ProfilePic, f.store.user(u.ID).ProfilePic)
	assert.Equal(t, "http://cms.test/media/"+withPic.ProfilePic, withPic.PictureURL)
}
