package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmsapi/internal/apperr"
	"cmsapi/internal/services"
)

type GalleryHandler struct {
	gallery   services.GalleryService
	maxUpload int64
}

func NewGalleryHandler(gallery services.GalleryService, maxUpload int64) *GalleryHandler {
	return &GalleryHandler{gallery: gallery, maxUpload: maxUpload}
}

type titleRequest struct {
	Title string `json:"title"`
}

// @Summary      List gallery files
// @Tags         FileGallery
// @Produce      json
// @Param        page  query     int  false  "Page"
// @Param        size  query     int  false  "Page size"
// @Success      200   {array}   models.GalleryFile
// @Router       /file-gallery [get]
func (h *GalleryHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	files, err := h.gallery.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

// @Summary      Get gallery file
// @Tags         FileGallery
// @Produce      json
// @Param        id   path      int  true  "File ID"
// @Success      200  {object}  models.GalleryFile
// @Failure      404  {object}  ErrorResponse
// @Router       /file-gallery/{id} [get]
func (h *GalleryHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	f, err := h.gallery.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// @Summary      Upload file
// @Tags         FileGallery
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file   formData  file    true   "File"
// @Param        title  formData  string  false  "Title, defaults to the file name"
// @Success      201    {object}  models.GalleryFile
// @Failure      400    {object}  ErrorResponse
// @Router       /file-gallery [post]
func (h *GalleryHandler) Upload(c *gin.Context) {
	upload, closeFn, err := formUpload(c, "file", h.maxUpload)
	defer closeFn()
	if err != nil {
		respondError(c, err)
		return
	}
	if upload == nil {
		respondError(c, apperr.Field("file", "file is required"))
		return
	}
	f, err := h.gallery.Upload(c.Request.Context(), currentUser(c), c.PostForm("title"), *upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// @Summary      Rename gallery file
// @Tags         FileGallery
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int           true  "File ID"
// @Param        body  body      titleRequest  true  "New title"
// @Success      200   {object}  models.GalleryFile
// @Failure      403   {object}  ErrorResponse
// @Router       /file-gallery/{id} [put]
func (h *GalleryHandler) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	f, err := h.gallery.UpdateTitle(c.Request.Context(), currentUser(c), id, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// @Summary      Delete gallery file
// @Tags         FileGallery
// @Security     BearerAuth
// @Param        id   path  int  true  "File ID"
// @Success      204
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /file-gallery/{id} [delete]
func (h *GalleryHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.gallery.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
