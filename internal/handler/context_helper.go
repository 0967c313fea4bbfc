package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rollcall-api/internal/middleware"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
	"github.com/noah-isme/rollcall-api/pkg/response"
)

// ownerFromContext returns the authenticated user id or writes a 401.
func ownerFromContext(c *gin.Context) (string, bool) {
	claims, ok := middleware.CurrentUser(c)
	if !ok || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.UserID, true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
