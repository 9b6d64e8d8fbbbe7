package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/modelgrid/connecthub/internal/auth"
	"github.com/modelgrid/connecthub/pkg/errors"
	"github.com/modelgrid/connecthub/pkg/response"
)

const (
	CtxClaimsKey     = "authClaims"
	CtxCustomerIDKey = "customerID"
)

// Auth enforces JWT bearer authentication and places the tenant identity in
// the request context.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.Validate(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxCustomerIDKey, claims.CustomerID)

		c.Next()
	}
}
