package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/orderfulfillment/internal/session"
)

// contextUsernameKey is the gin context key under which AdminAuth stores the
// authenticated operator's username for downstream handlers.
const contextUsernameKey = "admin_username"

// AdminAuth gates admin-only routes behind a bearer admin session token,
// looked up directly in session.Store — this system never issues JWTs.
func AdminAuth(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "unauthorized", Message: "отсутствует токен admin-сессии",
			})
			return
		}

		sess, err := store.Get(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "unauthorized", Message: "сессия недействительна или истекла",
			})
			return
		}

		c.Set(contextUsernameKey, sess.Username)
		c.Next()
	}
}

func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
