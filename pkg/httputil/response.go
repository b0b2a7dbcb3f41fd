package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status   string      `json:"status"`
	Message  string      `json:"message,omitempty"`
	Code     int         `json:"code,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
	Meta     *Page       `json:"meta,omitempty"`
}

// Page describes the window of a list response.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

func Success(data interface{}) *Response {
	return &Response{Status: "success", Data: data}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Success(data))
}

// RespondWithWarnings sends a success response that also reports failed
// side effects of the operation.
func RespondWithWarnings(c *gin.Context, status int, data interface{}, warnings []string) {
	resp := Success(data)
	resp.Warnings = warnings
	c.JSON(status, resp)
}

// RespondWithPage sends one page of a list.
func RespondWithPage(c *gin.Context, data interface{}, limit, offset, count int) {
	resp := Success(data)
	resp.Meta = &Page{Limit: limit, Offset: offset, Count: count}
	c.JSON(http.StatusOK, resp)
}

// ErrorStatus maps err onto an HTTP status and a client-safe message.
// Internal errors never leak their cause.
func ErrorStatus(err error) (int, string) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, "Internal server error"
	}
	status := appErr.StatusCode()
	if status == http.StatusInternalServerError {
		return status, "Internal server error"
	}
	return status, appErr.Message
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err error) {
	status, message := ErrorStatus(err)
	c.AbortWithStatusJSON(status, &Response{
		Status:  "error",
		Message: message,
		Code:    status,
	})
}
