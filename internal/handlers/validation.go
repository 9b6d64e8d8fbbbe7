package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/modelgrid/connecthub/pkg/errors"
	"github.com/modelgrid/connecthub/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and applies struct
// validation rules, returning an API-shaped error on failure.
func bindAndValidate(c *gin.Context, dest any) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return errors.NewBadRequest("request body is not valid JSON")
	}
	if err := validator.ValidateStruct(dest); err != nil {
		return errors.NewBadRequest(err.Error())
	}
	return nil
}
