package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/therapysync/schedule-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError sends an error response mapped from the application
// error taxonomy
func RespondWithError(c *gin.Context, err error) {
	code := errors.CodeOf(err)

	var message string
	if appErr, ok := err.(*errors.AppError); ok {
		message = appErr.Message
	} else {
		message = "Internal server error"
	}

	c.JSON(httpStatus(code), Response{
		Success: false,
		Error: &Error{
			Code:    int(code),
			Message: message,
		},
	})
}

func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrBadRequest,
		errors.ErrMissingFields,
		errors.ErrOutsideCertPeriod,
		errors.ErrInvalidTransition:
		return http.StatusBadRequest
	case errors.ErrTimeSlotConflict,
		errors.ErrWeeklyQuotaExceeded:
		return http.StatusConflict
	case errors.ErrNoCertificationPeriod:
		return http.StatusPreconditionFailed
	case errors.ErrTransportFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
