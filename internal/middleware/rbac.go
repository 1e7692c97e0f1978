package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
	"github.com/culinaryhub/culinary-school-api/pkg/response"
)

// RequireCapability enforces that the authenticated user's role grants every
// listed capability.
func RequireCapability(capabilities ...models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		for _, capability := range capabilities {
			if !claims.Role.Can(capability) {
				response.Error(c, appErrors.ErrForbidden)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
