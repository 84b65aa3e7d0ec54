package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmsapi/internal/apperr"
	"cmsapi/internal/models"
	"cmsapi/internal/services"
)

// UserHandler serves profile endpoints and the admin account actions.
type UserHandler struct {
	accounts  services.AccountService
	maxUpload int64
}

func NewUserHandler(accounts services.AccountService, maxUpload int64) *UserHandler {
	return &UserHandler{accounts: accounts, maxUpload: maxUpload}
}

// @Summary      List profiles
// @Tags         Profile
// @Produce      json
// @Security     BearerAuth
// @Param        page  query     int  false  "Page"
// @Param        size  query     int  false  "Page size"
// @Success      200   {array}   models.User
// @Router       /profile [get]
func (h *UserHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	users, err := h.accounts.List(c.Request.Context(), currentUser(c), false, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Summary      Get profile
// @Tags         Profile
// @Produce      json
// @Security     BearerAuth
// @Param        slug  path      string  true  "Profile slug"
// @Success      200   {object}  models.User
// @Failure      404   {object}  ErrorResponse
// @Router       /profile/{slug} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.accounts.GetBySlug(c.Request.Context(), currentUser(c), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Update profile
// @Tags         Profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        slug  path      string                       true  "Profile slug"
// @Param        body  body      models.UpdateProfileRequest  true  "Fields to change"
// @Success      200   {object}  models.User
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Router       /profile/{slug} [put]
func (h *UserHandler) Update(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.accounts.UpdateProfile(c.Request.Context(), currentUser(c), c.Param("slug"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Upload profile picture
// @Tags         Profile
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        slug         path      string  true  "Profile slug"
// @Param        profile_pic  formData  file    true  "Picture"
// @Success      200          {object}  models.User
// @Failure      400          {object}  ErrorResponse
// @Failure      403          {object}  ErrorResponse
// @Router       /profile/{slug}/picture [post]
func (h *UserHandler) UploadPicture(c *gin.Context) {
	upload, closeFn, err := formUpload(c, "profile_pic", h.maxUpload)
	defer closeFn()
	if err != nil {
		respondError(c, err)
		return
	}
	if upload == nil {
		respondError(c, apperr.Field("profile_pic", "file is required"))
		return
	}
	user, err := h.accounts.SetProfilePicture(c.Request.Context(), currentUser(c), c.Param("slug"), *upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Delete account
// @Description  Soft-deletes the account; an admin can restore it later
// @Tags         Profile
// @Security     BearerAuth
// @Param        slug  path  string  true  "Profile slug"
// @Success      204
// @Failure      403   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /profile/{slug} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	if _, err := h.accounts.SoftDelete(c.Request.Context(), currentUser(c), c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      List accounts (admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        include_deleted  query     bool  false  "Include deleted accounts"
// @Param        page             query     int   false  "Page"
// @Param        size             query     int   false  "Page size"
// @Success      200              {array}   models.User
// @Failure      403              {object}  ErrorResponse
// @Router       /admin/users [get]
func (h *UserHandler) AdminList(c *gin.Context) {
	limit, offset := pagination(c)
	users, err := h.accounts.List(c.Request.Context(), currentUser(c), queryBool(c, "include_deleted"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) transition(c *gin.Context, fn func(*gin.Context, *models.User, string) (*models.User, error)) {
	user, err := fn(c, currentUser(c), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Lock account (admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        slug  path      string  true  "Profile slug"
// @Success      200   {object}  models.User
// @Failure      403   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /admin/users/{slug}/lock [post]
func (h *UserHandler) Lock(c *gin.Context) {
	h.transition(c, func(c *gin.Context, actor *models.User, slug string) (*models.User, error) {
		return h.accounts.LockAccount(c.Request.Context(), actor, slug)
	})
}

// @Summary      Unlock account (admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        slug  path      string  true  "Profile slug"
// @Success      200   {object}  models.User
// @Failure      409   {object}  ErrorResponse
// @Router       /admin/users/{slug}/unlock [post]
func (h *UserHandler) Unlock(c *gin.Context) {
	h.transition(c, func(c *gin.Context, actor *models.User, slug string) (*models.User, error) {
		return h.accounts.UnlockAccount(c.Request.Context(), actor, slug)
	})
}

// @Summary      Restore deleted account (admin)
// @Description  Restored accounts come back locked
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        slug  path      string  true  "Profile slug"
// @Success      200   {object}  models.User
// @Failure      409   {object}  ErrorResponse
// @Router       /admin/users/{slug}/restore [post]
func (h *UserHandler) Restore(c *gin.Context) {
	h.transition(c, func(c *gin.Context, actor *models.User, slug string) (*models.User, error) {
		return h.accounts.Restore(c.Request.Context(), actor, slug)
	})
}
