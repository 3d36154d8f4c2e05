package handler

import (
	"errors"
	"net/http"
	"strconv"

	"nfaportal/internal/client"
	"nfaportal/internal/middleware"
	"nfaportal/internal/service"
	"nfaportal/internal/session"
	"nfaportal/internal/store"
	"nfaportal/internal/workflow"
	"nfaportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, client.ErrAuth), errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, workflow.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrIllegalTransition), errors.Is(err, service.ErrNotApproved):
		return http.StatusConflict
	case errors.Is(err, client.ErrRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the envelope for err. A backend 401 also clears the
// cookie and flags the session for expiry.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	status := statusFor(err)

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(status, response.Invalid(status, verr.Error(), verr.Fields))
		return
	}

	msg := err.Error()
	switch status {
	case http.StatusUnauthorized:
		c.Set(middleware.AuthRejectedKey, true)
		middleware.ClearTokenCookie(c, middleware.CookieOptionsFrom(c))
		msg = "session expired, please sign in again"
	case http.StatusNotFound:
		msg = "request not found"
	case http.StatusBadGateway:
		log.Warn().Err(err).Str("path", c.FullPath()).Msg("backend call failed")
		var remote *client.RemoteError
		if errors.As(err, &remote) && remote.Message != "" {
			msg = "backend error: " + remote.Message
		} else {
			msg = "backend unavailable"
		}
	case http.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unexpected error")
		msg = "internal error"
	}
	c.JSON(status, response.Error(status, msg))
}

// actorFrom builds the workflow actor from the session RequireSession stored.
func actorFrom(c *gin.Context) (workflow.Actor, bool) {
	s := middleware.CurrentSession(c)
	if s == nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
		return workflow.Actor{}, false
	}
	return workflow.Actor{User: s.User, Token: s.Token}, true
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid request id"))
		return 0, false
	}
	return id, true
}
