package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/repair-desk/pkg/httputil"
	reqvalidator "github.com/jwalitptl/repair-desk/pkg/validator"
)

// ValidationFailed is the 400 body for binding failures.
type ValidationFailed struct {
	httputil.Response
	Errors []reqvalidator.FieldError `json:"errors"`
}

// Validation installs the custom binding rules and turns validator errors
// attached by handlers into a field list. It must run inside ErrorHandler.
func Validation() gin.HandlerFunc {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := reqvalidator.Register(v); err != nil {
			panic(err)
		}
	}

	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		for _, e := range c.Errors {
			var verrs validator.ValidationErrors
			if !errors.As(e.Err, &verrs) {
				continue
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, &ValidationFailed{
				Response: httputil.Response{
					Status:  "error",
					Message: "validation failed",
					Code:    http.StatusBadRequest,
				},
				Errors: reqvalidator.Fields(verrs),
			})
			return
		}
	}
}
