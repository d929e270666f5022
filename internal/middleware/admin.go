package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/noah-isme/badger-tutors-api/pkg/errors"
	"github.com/noah-isme/badger-tutors-api/pkg/response"
)

const (
	// AdminKeyHeader carries the operator key for override routes.
	AdminKeyHeader = "X-Admin-Key"
	// ContextAdminKey marks requests authenticated with the operator key.
	ContextAdminKey = "adminAuthenticated"
)

// AdminKey guards operator routes with a bcrypt-hashed shared key. An empty
// hash disables the routes entirely.
func AdminKey(keyHash string) gin.HandlerFunc {
	hash := []byte(keyHash)
	return func(c *gin.Context) {
		if len(hash) == 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin routes are disabled"))
			c.Abort()
			return
		}
		key := c.GetHeader(AdminKeyHeader)
		if key == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "admin key required"))
			c.Abort()
			return
		}
		if err := bcrypt.CompareHashAndPassword(hash, []byte(key)); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid admin key"))
			c.Abort()
			return
		}
		c.Set(ContextAdminKey, true)
		c.Next()
	}
}
