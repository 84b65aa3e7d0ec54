package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"cmsapi/internal/apperr"
	"cmsapi/internal/handlers"
	"cmsapi/internal/models"
	"cmsapi/internal/services"
)

type tokens map[string]int64

func (t tokens) ParseAccess(tok string) (*services.Claims, error) {
	id, ok := t[tok]
	if !ok {
		return nil, apperr.InvalidToken("token is invalid")
	}
	return &services.Claims{UserID: id}, nil
}

type users map[int64]*models.User

func (u users) GetByID(_ context.Context, id int64) (*models.User, error) {
	if v, ok := u[id]; ok {
		return v, nil
	}
	return nil, apperr.NotFound("account not found")
}

func newEngine(maintenance, registration *bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := Handlers{
		Auth:       handlers.NewAuthHandler(nil),
		Users:      handlers.NewUserHandler(nil, 0),
		Posts:      handlers.NewPostHandler(nil, 0),
		Categories: handlers.NewCategoryHandler(nil),
		Gallery:    handlers.NewGalleryHandler(nil, 0),
		Health:     handlers.NewHealthHandler(nil, func() bool { return *maintenance }),
	}
	return SetupRoutes(gin.New(), h, Options{
		Tokens: tokens{"member": 1, "admin": 2},
		Users: users{
			1: {ID: 1, Status: models.StatusActive, IsVerified: true},
			2: {ID: 2, Status: models.StatusActive, IsVerified: true, IsSuperuser: true},
		},
		Maintenance:       func() bool { return *maintenance },
		AllowRegistration: func() bool { return *registration },
	})
}

func call(r http.Handler, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestSystemRoutes(t *testing.T) {
	off, on := false, true
	r := newEngine(&off, &on)
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/health-check", ""))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/metrics", ""))
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	off, on := false, true
	r := newEngine(&off, &on)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/api/me", ""))
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/api/me", "bogus"))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/me", "member"))
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodPost, "/api/posts", ""))
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodPost, "/api/file-gallery", ""))
}

func TestAdminRoutesNeedAdmin(t *testing.T) {
	off, on := false, true
	r := newEngine(&off, &on)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/api/admin/users", "member"))
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/api/categories", "member"))
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/api/admin/users/x/lock", "member"))
}

func TestMaintenanceMode(t *testing.T) {
	on := true
	r := newEngine(&on, &on)
	assert.Equal(t, http.StatusServiceUnavailable, call(r, http.MethodGet, "/health-check", ""))
	assert.Equal(t, http.StatusServiceUnavailable, call(r, http.MethodGet, "/api/posts", ""))
	assert.Equal(t, http.StatusServiceUnavailable, call(r, http.MethodPost, "/api/register", ""))
	// admin area stays reachable; a member is still rejected by the guard, not by maintenance
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/api/admin/users", "member"))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/metrics", ""))
}

func TestRegistrationDisabled(t *testing.T) {
	off := false
	r := newEngine(&off, &off)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/api/register", ""))
}
