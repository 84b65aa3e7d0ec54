package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"cmsapi/internal/apperr"
	"cmsapi/internal/models"
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

type Claims struct {
	UserID int64     `json:"user_id"`
	Email  string    `json:"email"`
	Type   TokenType `json:"type"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh,omitempty"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
}

type TokenService interface {
	IssueTokens(user *models.User) (*TokenPair, error)
	// Refresh returns a new access token for a valid refresh token.
	Refresh(refreshToken string) (*TokenPair, error)
	ParseAccess(token string) (*Claims, error)
}

type tokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration, now func() time.Time) TokenService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &tokenService{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL, now: now}
}

func (s *tokenService) sign(userID int64, email string, typ TokenType, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, exp, nil
}

func (s *tokenService) IssueTokens(user *models.User) (*TokenPair, error) {
	access, accessExp, err := s.sign(user.ID, user.Email, TokenAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.sign(user.ID, user.Email, TokenRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *tokenService) parse(token string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, apperr.Expired("token has expired")
	}
	if err != nil {
		return nil, apperr.InvalidToken("token is invalid")
	}
	if claims.Type != want || claims.UserID == 0 {
		return nil, apperr.InvalidToken("token has wrong type")
	}
	return claims, nil
}

func (s *tokenService) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := s.parse(refreshToken, TokenRefresh)
	if err != nil {
		return nil, err
	}
	access, exp, err := s.sign(claims.UserID, claims.Email, TokenAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, AccessExpiresAt: exp}, nil
}

func (s *tokenService) ParseAccess(token string) (*Claims, error) {
	return s.parse(token, TokenAccess)
}
