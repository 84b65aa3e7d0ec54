package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var maintenanceBody = gin.H{
	"detail": "The site is under maintenance. Please try again later.",
	"key":    "MAINTENANCE_MODE",
	"CODE":   "MAT503",
}

var registrationClosedBody = gin.H{
	"detail": "User registration is currently disabled.",
	"key":    "REGISTRATION_DISABLED",
	"CODE":   "REG403",
}

// MaintenanceBody is the 503 payload shared with the health check.
func MaintenanceBody() gin.H { return maintenanceBody }

// Maintenance answers 503 for every request while enabled() is true.
// Paths with one of the exempt prefixes stay reachable.
func Maintenance(enabled func() bool, exempt ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled() {
			c.Next()
			return
		}
		for _, p := range exempt {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, maintenanceBody)
	}
}

// RegistrationGate rejects the route it wraps with 403 while allowed() is false.
func RegistrationGate(allowed func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allowed() {
			c.AbortWithStatusJSON(http.StatusForbidden, registrationClosedBody)
			return
		}
		c.Next()
	}
}
