package handler

import (
	"errors"
	"net/http"

	"nfaportal/internal/client"
	"nfaportal/internal/middleware"
	"nfaportal/internal/service"
	"nfaportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type UserHandler struct {
	userService service.UserService
	auth        gin.HandlerFunc
	cookies     middleware.CookieOptions
	log         zerolog.Logger
}

// NewUserHandler sets up the routing dependencies for sign-in and user endpoints
func NewUserHandler(userService service.UserService, auth gin.HandlerFunc, cookies middleware.CookieOptions, log zerolog.Logger) *UserHandler {
	return &UserHandler{userService: userService, auth: auth, cookies: cookies, log: log}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Public routes
	router.POST("/api/login", h.Login)

	authed := router.Group("/api", h.auth)
	{
		authed.POST("/logout", h.Logout)
		authed.GET("/me", h.GetMe)
		authed.GET("/users", h.ListUsers)
		authed.GET("/users/approvers", h.ListApprovers)
	}
}

// Login handles POST /api/login
// @Summary      Login user
// @Description  Authenticates against the NFA backend (JSON or form body) and opens a portal session. The token is also set as the access_token cookie.
// @Tags         auth
// @Accept       json
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        payload  body      service.LoginUserRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      502      {object}  response.Response
// @Router       /api/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginUserRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	res, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, client.ErrAuth) {
			c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "invalid username or password"))
			return
		}
		respondError(c, h.log, err)
		return
	}

	middleware.SetTokenCookie(c, h.cookies, res.AccessToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Logout handles POST /api/logout
// @Summary      Logout user
// @Description  Ends the portal session and clears the access_token cookie
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.userService.Logout(c.Request.Context(), middleware.CurrentSession(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	middleware.ClearTokenCookie(c, h.cookies)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "signed out"}))
}

// GetMe handles GET /api/me
// @Summary      Current user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	s := middleware.CurrentSession(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.userService.Me(s)))
}

// ListUsers handles GET /api/users
// @Summary      List users
// @Description  Every backend account except the caller, for the recommender picker
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.UserResponse}
// @Failure      502  {object}  response.Response
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	users, err := h.userService.ListUsers(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, users))
}

// ListApprovers handles GET /api/users/approvers
// @Summary      List approvers
// @Description  Accounts with the approver role code, except the caller
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.UserResponse}
// @Failure      502  {object}  response.Response
// @Router       /api/users/approvers [get]
func (h *UserHandler) ListApprovers(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	users, err := h.userService.ListApprovers(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, users))
}
