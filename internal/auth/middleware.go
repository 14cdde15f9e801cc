package auth

import (
	"strings"

	"synapse/internal/common"

	"github.com/gin-gonic/gin"
)

// UserContextKey is the gin context key holding the authenticated user.
const UserContextKey = "auth_user"

// UserContext is the authenticated caller.
type UserContext struct {
	UserID string
	Role   string
}

// AuthMiddleware validates the bearer token and stores the caller on the gin
// context.
func AuthMiddleware(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.ResponseUnauthorized(c, "missing bearer token")
			c.Abort()
			return
		}

		token := extractBearer(authHeader)
		if token == "" {
			common.ResponseUnauthorized(c, "malformed authorization header")
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			common.ResponseUnauthorized(c, "token validation failed")
			c.Abort()
			return
		}

		c.Set(UserContextKey, &UserContext{
			UserID: claims.UserID,
			Role:   claims.Role,
		})
		c.Next()
	}
}

// CurrentUser reads the authenticated caller from the gin context. Returns an
// empty user when the middleware did not run.
func CurrentUser(c *gin.Context) *UserContext {
	if v, exists := c.Get(UserContextKey); exists {
		if user, ok := v.(*UserContext); ok {
			return user
		}
	}
	return &UserContext{}
}

func extractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
