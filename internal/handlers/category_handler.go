package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmsapi/internal/models"
	"cmsapi/internal/services"
)

type CategoryHandler struct {
	categories services.CategoryService
}

func NewCategoryHandler(categories services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// @Summary      List categories
// @Tags         Categories
// @Produce      json
// @Success      200  {array}  models.Category
// @Router       /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	list, err := h.categories.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Get category
// @Tags         Categories
// @Produce      json
// @Param        slug  path      string  true  "Category slug"
// @Success      200   {object}  models.Category
// @Failure      404   {object}  ErrorResponse
// @Router       /categories/{slug} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	cat, err := h.categories.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// @Summary      Create category (admin)
// @Tags         Categories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      models.CategoryInput  true  "Category"
// @Success      201   {object}  models.Category
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Router       /categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var in models.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// @Summary      Update category (admin)
// @Tags         Categories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        slug  path      string                true  "Category slug"
// @Param        body  body      models.CategoryInput  true  "Category"
// @Success      200   {object}  models.Category
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Router       /categories/{slug} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	var in models.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := h.categories.Update(c.Request.Context(), currentUser(c), c.Param("slug"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// @Summary      Delete category (admin)
// @Tags         Categories
// @Security     BearerAuth
// @Param        slug  path  string  true  "Category slug"
// @Success      204
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /categories/{slug} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	if err := h.categories.Delete(c.Request.Context(), currentUser(c), c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
