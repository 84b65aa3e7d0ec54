package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cmsapi/internal/apperr"
	"cmsapi/internal/middleware"
	"cmsapi/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// maxPage keeps (page-1)*size far from int overflow.
	maxPage = 100000
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// respondError maps domain errors to their status. Unclassified errors become
// a generic 500 and are attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, ErrorResponse{Error: "internal server error"})
		return
	}
	resp := ErrorResponse{Error: err.Error(), Kind: string(apperr.KindOf(err))}
	var e *apperr.Error
	if errors.As(err, &e) && len(e.Fields) > 0 {
		resp.Fields = e.Fields
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: string(apperr.KindValidation)})
}

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}

// pagination reads ?page=&size= the same way across list endpoints.
func pagination(c *gin.Context) (limit, offset int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return size, (page - 1) * size
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id", Kind: string(apperr.KindValidation)})
		return 0, false
	}
	return id, true
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}

// formUpload opens the multipart file in field. It returns nil when the
// field is absent and a validation error when the file exceeds maxBytes.
func formUpload(c *gin.Context, field string, maxBytes int64) (*models.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, apperr.Field(field, "could not read upload")
	}
	return openUpload(fh, field, maxBytes)
}

func openUpload(fh *multipart.FileHeader, field string, maxBytes int64) (*models.Upload, func(), error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, func() {}, apperr.Field(field, "file is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, apperr.Field(field, "could not read upload")
	}
	return &models.Upload{Reader: f, Filename: fh.Filename, Size: fh.Size}, func() { _ = f.Close() }, nil
}
