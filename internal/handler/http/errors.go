package http

import (
	"errors"
	"net/http"

	"civic-issue-portal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAuthenticationFailed):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrNotAuthorized):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrCommunityNotFound),
		errors.Is(err, service.ErrMemberNotFound),
		errors.Is(err, service.ErrIssueNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrRegistrationFailed),
		errors.Is(err, service.ErrCommunityNameTaken),
		errors.Is(err, service.ErrDuplicateJoinRequest),
		errors.Is(err, service.ErrNoPendingRequest),
		errors.Is(err, service.ErrSelfKick):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		// Log the internal error for debugging
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
