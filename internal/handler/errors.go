package handler

import (
	"errors"
	"net/http"

	"ims-backend/internal/service"
	"ims-backend/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// statusForError maps workflow sentinel errors to HTTP status codes.
// Authorization failures are 403, missing records 404, lost races and
// state conflicts 409, routing configuration gaps 422, everything else
// a plain 400.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrNotCurrentApprover),
		errors.Is(err, service.ErrNotRequestOwner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrItemAlreadyDecided),
		errors.Is(err, service.ErrEnvelopeClosed),
		errors.Is(err, service.ErrNotInReturnedState),
		errors.Is(err, service.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoApproverConfigured):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusForError(err)
	c.JSON(status, response.Error(status, err.Error()))
}
