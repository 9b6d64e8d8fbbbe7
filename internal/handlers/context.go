package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/modelgrid/connecthub/internal/middleware"
	"github.com/modelgrid/connecthub/pkg/errors"
)

// customerID extracts the authenticated tenant from the request context.
func customerID(c *gin.Context) (string, error) {
	id := c.GetString(middleware.CtxCustomerIDKey)
	if id == "" {
		return "", errors.ErrUnauthorized
	}
	return id, nil
}
