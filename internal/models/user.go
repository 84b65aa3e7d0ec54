package models

import (
	"encoding/json"
	"strings"
	"time"
)

// AccountStatus replaces the is_active / is_deleted flag pair.
type AccountStatus string

const (
	StatusActive  AccountStatus = "active"
	StatusLocked  AccountStatus = "locked"
	StatusDeleted AccountStatus = "deleted"
)

type User struct {
	ID           int64         `json:"id"`
	Email        string        `json:"email"`
	Username     string        `json:"username"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Slug         string        `json:"slug"`
	Bio          string        `json:"bio"`
	Address      string        `json:"address"`
	ProfilePic   string        `json:"profile_pic,omitempty"`
	PictureURL   string        `json:"profile_pic_url,omitempty"`
	PasswordHash string        `json:"-"` // never leaves the server
	Status       AccountStatus `json:"status"`
	IsVerified   bool          `json:"is_verified"`
	IsStaff      bool          `json:"is_staff"`
	IsSuperuser  bool          `json:"is_superuser"`
	JoinedAt     time.Time     `json:"date_joined"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (u *User) IsActive() bool  { return u != nil && u.Status == StatusActive }
func (u *User) IsDeleted() bool { return u != nil && u.Status == StatusDeleted }
func (u *User) IsLocked() bool  { return u != nil && u.Status == StatusLocked }
func (u *User) IsAdmin() bool   { return u != nil && (u.IsStaff || u.IsSuperuser) }

// EmailLocalPart returns the part of email before "@".
func EmailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// MarshalJSON adds the derived is_active / is_deleted flags clients expect.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return json.Marshal(struct {
		plain
		IsActive  bool `json:"is_active"`
		IsDeleted bool `json:"is_deleted"`
	}{
		plain:     plain(u),
		IsActive:  u.IsActive(),
		IsDeleted: u.IsDeleted(),
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// UpdateProfileRequest carries the editable profile fields; nil means unchanged.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Username  *string `json:"username"`
	Bio       *string `json:"bio"`
	Address   *string `json:"address"`
}
