package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/profilehub/internal/account"
	"github.com/jon4hz/profilehub/internal/api/models"
)

// writeError maps account error kinds to HTTP status codes.
func writeError(c *gin.Context, err error) {
	var accErr *account.Error
	if !errors.As(err, &accErr) {
		accErr = &account.Error{Kind: account.KindInternal, Message: account.MsgInternal, Err: err}
	}

	var status int
	switch accErr.Kind {
	case account.KindNotFound:
		status = http.StatusNotFound
	case account.KindUnauthorized:
		status = http.StatusUnauthorized
	case account.KindConflict:
		status = http.StatusConflict
	default:
		log.Error("request failed", "path", c.FullPath(), "error", err)
		status = http.StatusInternalServerError
	}

	c.JSON(status, models.ErrorResponse{Detail: accErr.Message})
}

// validationError rejects a malformed request before any handler logic runs.
func validationError(c *gin.Context, err error) {
	log.Debug("invalid request", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Detail: err.Error()})
}
