package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"cmsapi/internal/mail"
	"cmsapi/internal/models"
	"cmsapi/internal/repositories"
)

type memData struct {
	users    map[int64]*models.User
	otps     []*models.EmailOTP
	nextUser int64
	nextOTP  int64

	failSetVerified bool
}

func (d *memData) clone() *memData {
	c := &memData{
		users:           make(map[int64]*models.User, len(d.users)),
		otps:            make([]*models.EmailOTP, 0, len(d.otps)),
		nextUser:        d.nextUser,
		nextOTP:         d.nextOTP,
		failSetVerified: d.failSetVerified,
	}
	for id, u := range d.users {
		cp := *u
		c.users[id] = &cp
	}
	for _, o := range d.otps {
		cp := *o
		c.otps = append(c.otps, &cp)
	}
	return c
}

// memStore serialises transactions on one mutex and restores a snapshot
// when the transaction function fails.
type memStore struct {
	mu   *sync.Mutex
	d    *memData
	inTx bool
}

func newMemStore() *memStore {
	return &memStore{mu: &sync.Mutex{}, d: &memData{users: map[int64]*models.User{}}}
}

func (s *memStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) Users() repositories.UserRepository { return memUsers{s} }
func (s *memStore) OTPs() repositories.OTPRepository   { return memOTPs{s} }

func (s *memStore) WithinTx(_ context.Context, fn func(repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.d.clone()
	if err := fn(&memStore{mu: s.mu, d: s.d, inTx: true}); err != nil {
		*s.d = *snap
		return err
	}
	return nil
}

func (s *memStore) user(id int64) *models.User {
	defer s.lock()()
	u := *s.d.users[id]
	return &u
}

func (s *memStore) add(u *models.User) *models.User {
	defer s.lock()()
	s.d.nextUser++
	u.ID = s.d.nextUser
	if u.Slug == "" {
		u.Slug = fmt.Sprintf("user-%d", u.ID)
	}
	cp := *u
	s.d.users[u.ID] = &cp
	return u
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) error {
	defer r.s.lock()()
	for _, ex := range r.s.d.users {
		if strings.EqualFold(ex.Email, u.Email) {
			return repositories.ErrDuplicate
		}
	}
	r.s.d.nextUser++
	u.ID = r.s.d.nextUser
	u.JoinedAt = time.Now()
	cp := *u
	r.s.d.users[u.ID] = &cp
	return nil
}

func (r memUsers) find(match func(*models.User) bool) (*models.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.d.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r memUsers) GetBySlug(_ context.Context, slug string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Slug == slug })
}

func (r memUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r memUsers) mutate(id int64, fn func(*models.User)) error {
	defer r.s.lock()()
	u, ok := r.s.d.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(u)
	return nil
}

func (r memUsers) UpdateProfile(_ context.Context, in *models.User) error {
	return r.mutate(in.ID, func(u *models.User) {
		u.FirstName, u.LastName, u.Username = in.FirstName, in.LastName, in.Username
		u.Bio, u.Address, u.ProfilePic = in.Bio, in.Address, in.ProfilePic
	})
}

func (r memUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	return r.mutate(id, func(u *models.User) { u.PasswordHash = hash })
}

func (r memUsers) SetVerified(_ context.Context, id int64, verified bool) error {
	if r.s.d.failSetVerified {
		return errors.New("disk full")
	}
	return r.mutate(id, func(u *models.User) { u.IsVerified = verified })
}

func (r memUsers) UpdateStatus(_ context.Context, id int64, status models.AccountStatus) error {
	return r.mutate(id, func(u *models.User) { u.Status = status })
}

func (r memUsers) list(keep func(*models.User) bool, limit, offset int) []*models.User {
	defer r.s.lock()()
	var out []*models.User
	for _, u := range r.s.d.users {
		if keep(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func (r memUsers) ListActive(_ context.Context, limit, offset int) ([]*models.User, error) {
	return r.list(func(u *models.User) bool { return u.IsActive() }, limit, offset), nil
}

func (r memUsers) ListAll(_ context.Context, includeDeleted bool, limit, offset int) ([]*models.User, error) {
	return r.list(func(u *models.User) bool { return includeDeleted || !u.IsDeleted() }, limit, offset), nil
}

type memOTPs struct{ s *memStore }

func (r memOTPs) Create(_ context.Context, o *models.EmailOTP) error {
	defer r.s.lock()()
	r.s.d.nextOTP++
	o.ID = r.s.d.nextOTP
	cp := *o
	r.s.d.otps = append(r.s.d.otps, &cp)
	return nil
}

func (r memOTPs) FindLatestUnused(_ context.Context, email, code string, purpose models.OTPPurpose) (*models.EmailOTP, error) {
	defer r.s.lock()()
	var best *models.EmailOTP
	for _, o := range r.s.d.otps {
		if o.IsUsed || o.Code != code || o.Purpose != purpose || !strings.EqualFold(o.Email, email) {
			continue
		}
		if best == nil || !o.CreatedAt.Before(best.CreatedAt) {
			best = o
		}
	}
	if best == nil {
		return nil, repositories.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r memOTPs) MarkUsed(_ context.Context, id int64) error {
	defer r.s.lock()()
	for _, o := range r.s.d.otps {
		if o.ID == id && !o.IsUsed {
			o.IsUsed = true
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *memStore) otp(id int64) models.EmailOTP {
	defer s.lock()()
	for _, o := range s.d.otps {
		if o.ID == id {
			return *o
		}
	}
	return models.EmailOTP{}
}

type captureOutbox struct {
	mu   sync.Mutex
	msgs []mail.Message
	err  error
}

func (o *captureOutbox) Enqueue(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

// lastCode returns the newest code sent to email for purpose.
func (o *captureOutbox) lastCode(email string, purpose mail.Purpose) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].To == email && o.msgs[i].Purpose == purpose {
			return o.msgs[i].Context["otp"]
		}
	}
	return ""
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memFiles struct {
	mu      sync.Mutex
	files   map[string][]byte
	counter int
}

func newMemFiles() *memFiles { return &memFiles{files: map[string][]byte{}} }

func (f *memFiles) Save(_ context.Context, r io.Reader, dir, filename string) (string, int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return "", 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	path := fmt.Sprintf("%s/%d-%s", dir, f.counter, filename)
	f.files[path] = buf.Bytes()
	return path, n, nil
}

func (f *memFiles) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[path]; !ok {
		return errors.New("no such file")
	}
	delete(f.files, path)
	return nil
}

func (f *memFiles) URL(path string) string { return "http://cms.test/media/" + path }

func (f *memFiles) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok
}
