// Package handler holds helpers shared by the HTTP handlers.
package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/repair-desk/internal/model"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
)

// BindJSON decodes the body into obj. On failure the error is attached to
// the context for the error middleware and false is returned.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		_ = c.Error(bindError(err))
		return false
	}
	return true
}

// BindQuery is BindJSON for query strings.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		_ = c.Error(bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	return apperrors.BadRequest("invalid request: "+err.Error(), err)
}

// Page reads limit and offset, clamped to the shared bounds.
func Page(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return model.NormalizePage(limit, offset)
}
