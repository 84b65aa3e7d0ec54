package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cmsapi/internal/apperr"
	"cmsapi/internal/models"
	"cmsapi/internal/services"
)

const userKey = "current_user"

// AccessParser validates access tokens.
type AccessParser interface {
	ParseAccess(token string) (*services.Claims, error)
}

// UserLoader resolves the account behind a token.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

var errBadHeader = apperr.InvalidToken("Missing or invalid Authorization header")

// bearerToken returns the token from "Authorization: Bearer <token>", "" when
// the header is absent.
func bearerToken(c *gin.Context) (string, error) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return "", nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errBadHeader
	}
	tokenStr := strings.TrimSpace(parts[1])
	if tokenStr == "" {
		return "", errBadHeader
	}
	return tokenStr, nil
}

// LoadUser attaches the caller's account to the context when a bearer token
// is present. Requests without a token continue anonymously; a bad token is
// rejected with 401.
func LoadUser(tokens AccessParser, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		tokenStr, err := bearerToken(c)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}
		if tokenStr == "" {
			c.Next()
			return
		}

		claims, err := tokens.ParseAccess(tokenStr)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}
		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				abortUnauthorized(c, apperr.InvalidToken("token user no longer exists"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireUser rejects anonymous callers with 401 and inactive accounts with 403.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortUnauthorized(c, apperr.InvalidToken("authentication required"))
			return
		}
		if !user.IsActive() {
			abortWith(c, http.StatusForbidden, apperr.Inactive("account is not active"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated account, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// SetCurrentUser is used by tests and internal callers that authenticate by other means.
func SetCurrentUser(c *gin.Context, u *models.User) {
	c.Set(userKey, u)
}

// abortUnauthorized always answers 401, including for expired access tokens.
func abortUnauthorized(c *gin.Context, err error) {
	abortWith(c, http.StatusUnauthorized, err)
}

func abortWith(c *gin.Context, status int, err error) {
	body := gin.H{"error": err.Error()}
	if kind := apperr.KindOf(err); kind != "" {
		body["kind"] = kind
	}
	c.AbortWithStatusJSON(status, body)
}
