package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"nfaportal/internal/client"
	"nfaportal/internal/middleware"
	"nfaportal/internal/service"
	"nfaportal/internal/session"
	"nfaportal/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct {
	loggedOut int
	logoutErr error
}

func (s *stubUsers) Login(_ context.Context, req service.LoginUserRequest) (*service.LoginResponse, error) {
	if req.Password != "pw" {
		return nil, client.ErrAuth
	}
	return &service.LoginResponse{
		AccessToken: "good",
		TokenType:   "bearer",
		User:        service.UserResponse{ID: 1, Username: req.Username},
	}, nil
}

func (s *stubUsers) Logout(_ context.Context, sess *session.Session) error {
	if s.logoutErr != nil {
		return s.logoutErr
	}
	if sess != nil {
		s.loggedOut++
	}
	return nil
}

func (s *stubUsers) Me(sess *session.Session) service.UserResponse {
	return service.UserResponse{ID: sess.User.ID, Name: sess.User.Name}
}

func (s *stubUsers) ListUsers(context.Context, workflow.Actor) ([]service.UserResponse, error) {
	return []service.UserResponse{{ID: 2}, {ID: 3}}, nil
}

func (s *stubUsers) ListApprovers(context.Context, workflow.Actor) ([]service.UserResponse, error) {
	return []service.UserResponse{{ID: 3, CanApprove: true}}, nil
}

func (s *stubUsers) HandleExpired(session.Session) {}

func newUserRouter(svc service.UserService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := middleware.RequireSession(&stubResolver{}, middleware.CookieOptions{})
	NewUserHandler(svc, auth, middleware.CookieOptions{}, zerolog.Nop()).RegisterRoutes(r.Group(""))
	return r
}

func TestLoginSetsCookie(t *testing.T) {
	r := newUserRouter(&stubUsers{})

	form := url.Values{"username": {"alice"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	cookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, "access_token=good")
	assert.Contains(t, cookie, "HttpOnly")

	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "good", data["access_token"])
}

func TestLoginFailures(t *testing.T) {
	r := newUserRouter(&stubUsers{})

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"alice","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid username or password", decodeBody(t, w)["error"])

	req = httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionFromCookie(t *testing.T) {
	svc := &stubUsers{}
	r := newUserRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "good"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 1, data["id"])

	req = httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "good"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.loggedOut)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "access_token=;")
}

func TestLogoutFailureKeepsCookie(t *testing.T) {
	r := newUserRouter(&stubUsers{logoutErr: errors.New("failed to sign out: db down")})

	w := doRequest(r, http.MethodPost, "/api/logout", "", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("Set-Cookie"))
}

func TestUserPickers(t *testing.T) {
	r := newUserRouter(&stubUsers{})

	w := doRequest(r, http.MethodGet, "/api/users/approvers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decodeBody(t, w)["data"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, true, users[0].(map[string]any)["can_approve"])
}
