package middleware

import (
	"strings"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/pkg/errors"
	"helpdesk-collab/backend/pkg/jwt"
	"helpdesk-collab/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// JWTAuthMiddleware checks that the request has a valid JWT and adds claims to the context
func JWTAuthMiddleware(jwtService *jwt.Service, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
			c.Abort()
			return
		}

		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			logger.Warn("Invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("userId", claims.UserID)
		c.Set("userRole", models.Role(claims.Role))

		c.Next()
	}
}

// RequireRole returns a middleware that requires the user to have a specific role
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actual, exists := c.Get("userRole")
		if !exists {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
			c.Abort()
			return
		}

		if actual.(models.Role) != role {
			c.Error(errors.NewForbiddenError("INSUFFICIENT_ROLE", "Your role does not allow this operation"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAnyRole returns middleware that requires the user to have at least one of the specified roles
func RequireAnyRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actual, exists := c.Get("userRole")
		if !exists {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
			c.Abort()
			return
		}

		for _, role := range roles {
			if actual.(models.Role) == role {
				c.Next()
				return
			}
		}

		c.Error(errors.NewForbiddenError("INSUFFICIENT_ROLE", "Your role does not allow this operation"))
		c.Abort()
	}
}
