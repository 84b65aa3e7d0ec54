package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmsapi/internal/models"
	"cmsapi/internal/services"
)

type PostHandler struct {
	posts     services.PostService
	maxUpload int64
}

func NewPostHandler(posts services.PostService, maxUpload int64) *PostHandler {
	return &PostHandler{posts: posts, maxUpload: maxUpload}
}

// postRequest accepts either JSON or multipart form data; the thumbnail can
// only arrive with the multipart variant.
type postRequest struct {
	Title       *string  `json:"title" form:"title"`
	Body        *string  `json:"body" form:"body"`
	Tags        []string `json:"tags" form:"tags"`
	Categories  []int64  `json:"categories" form:"categories"`
	IsPublished *bool    `json:"is_published" form:"is_published"`
}

func (r postRequest) input() models.PostInput {
	return models.PostInput{
		Title:       r.Title,
		Body:        r.Body,
		Tags:        r.Tags,
		CategoryIDs: r.Categories,
		IsPublished: r.IsPublished,
	}
}

func (h *PostHandler) bind(c *gin.Context) (models.PostInput, *models.Upload, func(), bool) {
	var req postRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return models.PostInput{}, nil, func() {}, false
	}
	thumb, closeFn, err := formUpload(c, "thumbnail", h.maxUpload)
	if err != nil {
		respondError(c, err)
		return models.PostInput{}, nil, closeFn, false
	}
	return req.input(), thumb, closeFn, true
}

// @Summary      List posts
// @Description  Anonymous callers see published posts; members also see their own drafts; admins see everything
// @Tags         Posts
// @Produce      json
// @Param        category         query     string  false  "Category slug"
// @Param        include_deleted  query     bool    false  "Include deleted posts (admin)"
// @Param        page             query     int     false  "Page"
// @Param        size             query     int     false  "Page size"
// @Success      200              {array}   models.Post
// @Router       /posts [get]
func (h *PostHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	posts, err := h.posts.List(c.Request.Context(), currentUser(c), services.PostQuery{
		IncludeDeleted: queryBool(c, "include_deleted"),
		Category:       c.Query("category"),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// @Summary      Get post
// @Tags         Posts
// @Produce      json
// @Param        slug  path      string  true  "Post slug"
// @Success      200   {object}  models.Post
// @Failure      404   {object}  ErrorResponse
// @Router       /posts/{slug} [get]
func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.posts.Get(c.Request.Context(), currentUser(c), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// @Summary      Create post
// @Tags         Posts
// @Accept       json
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        body       body      postRequest  true   "Post"
// @Param        thumbnail  formData  file         false  "Thumbnail"
// @Success      201        {object}  models.Post
// @Failure      400        {object}  ErrorResponse
// @Failure      403        {object}  ErrorResponse
// @Router       /posts [post]
func (h *PostHandler) Create(c *gin.Context) {
	in, thumb, closeFn, ok := h.bind(c)
	defer closeFn()
	if !ok {
		return
	}
	post, err := h.posts.Create(c.Request.Context(), currentUser(c), in, thumb)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// @Summary      Update post
// @Tags         Posts
// @Accept       json
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        slug       path      string       true   "Post slug"
// @Param        body       body      postRequest  true   "Fields to change"
// @Param        thumbnail  formData  file         false  "Thumbnail"
// @Success      200        {object}  models.Post
// @Failure      400        {object}  ErrorResponse
// @Failure      403        {object}  ErrorResponse
// @Failure      409        {object}  ErrorResponse
// @Router       /posts/{slug} [put]
func (h *PostHandler) Update(c *gin.Context) {
	in, thumb, closeFn, ok := h.bind(c)
	defer closeFn()
	if !ok {
		return
	}
	post, err := h.posts.Update(c.Request.Context(), currentUser(c), c.Param("slug"), in, thumb)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// @Summary      Publish post
// @Tags         Posts
// @Produce      json
// @Security     BearerAuth
// @Param        slug  path      string  true  "Post slug"
// @Success      200   {object}  models.Post
// @Failure      409   {object}  ErrorResponse
// @Router       /posts/{slug}/publish [post]
func (h *PostHandler) Publish(c *gin.Context) {
	post, err := h.posts.Publish(c.Request.Context(), currentUser(c), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// @Summary      Unpublish post
// @Tags         Posts
// @Produce      json
// @Security     BearerAuth
// @Param        slug  path      string  true  "Post slug"
// @Success      200   {object}  models.Post
// @Failure      409   {object}  ErrorResponse
// @Router       /posts/{slug}/unpublish [post]
func (h *PostHandler) Unpublish(c *gin.Context) {
	post, err := h.posts.Unpublish(c.Request.Context(), currentUser(c), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// @Summary      Delete post
// @Description  Soft delete; the post can be restored
// @Tags         Posts
// @Security     BearerAuth
// @Param        slug  path  string  true  "Post slug"
// @Success      204
// @Failure      403   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /posts/{slug} [delete]
func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.posts.Delete(c.Request.Context(), currentUser(c), c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Restore post
// @Tags         Posts
// @Produce      json
// @Security     BearerAuth
// @Param        slug  path      string  true  "Post slug"
// @Success      200   {object}  models.Post
// @Failure      409   {object}  ErrorResponse
// @Router       /posts/{slug}/restore [post]
func (h *PostHandler) Restore(c *gin.Context) {
	post, err := h.posts.Restore(c.Request.Context(), currentUser(c), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}
