package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmsapi/internal/apperr"
	"cmsapi/internal/authz"
)

// Require enforces an action whose policy does not depend on resource
// ownership (public, authenticated, admin). Owner checks run in the services.
func Require(action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if authz.Allowed(user, action, 0) {
			c.Next()
			return
		}
		if user == nil {
			abortUnauthorized(c, apperr.InvalidToken("authentication required"))
			return
		}
		abortWith(c, http.StatusForbidden, apperr.Forbidden("you are not allowed to "+string(action)))
	}
}
