package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/idbridge/internal/identity"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// handlers carries the HTTP handler dependencies.
type handlers struct {
	app    *application
	logger observability.Logger
}

func (h *handlers) health(c *gin.Context) {
	status := gin.H{"status": "ok", "version": version}

	if h.app.pool != nil {
		if err := h.app.pool.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded", "database": err.Error(),
			})
			return
		}
		status["database"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

type tokenRequest struct {
	GrantType   string `json:"grantType"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

func (h *handlers) token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	var (
		ts  *identity.TokenSet
		err error
	)
	switch req.GrantType {
	case "", "password":
		ts, err = h.app.identity.Login(c.Request.Context(), req.Username, req.Password)
	case "authorization_code":
		ts, err = h.app.identity.TokenFromCode(c.Request.Context(), req.Code, req.RedirectURI)
	case "client_credentials":
		ts, err = h.app.identity.ClientCredentialsToken(c.Request.Context())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported grant type"})
		return
	}
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (h *handlers) refreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
		return
	}

	ts, err := h.app.identity.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (h *handlers) introspectToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	in, err := h.app.identity.IntrospectToken(c.Request.Context(), req.Token)
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *handlers) logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
		return
	}

	if err := h.app.identity.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) userinfo(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
		return
	}

	info, err := h.app.identity.Userinfo(c.Request.Context(), token)
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handlers) checkRole(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
		return
	}

	roles := c.QueryArray("role")
	if len(roles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one role is required"})
		return
	}

	var granted bool
	switch c.DefaultQuery("mode", "any") {
	case "any":
		granted = h.app.identity.HasAnyRole(c.Request.Context(), token, roles...)
	case "all":
		granted = h.app.identity.HasAllRoles(c.Request.Context(), token, roles...)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be any or all"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"granted": granted})
}

func (h *handlers) checkPermission(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
		return
	}

	resource := c.Query("resource")
	if resource == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource is required"})
		return
	}

	granted := h.app.identity.CheckPermission(c.Request.Context(), token, resource, c.Query("scope"))
	c.JSON(http.StatusOK, gin.H{"granted": granted})
}

func (h *handlers) listUsers(c *gin.Context) {
	ctx := c.Request.Context()

	if username := c.Query("username"); username != "" {
		u, err := h.app.identity.GetUserByUsername(ctx, username)
		if err != nil {
			abortWithFault(c, err)
			return
		}
		c.JSON(http.StatusOK, usersOrEmpty(u))
		return
	}
	if email := c.Query("email"); email != "" {
		u, err := h.app.identity.GetUserByEmail(ctx, email)
		if err != nil {
			abortWithFault(c, err)
			return
		}
		c.JSON(http.StatusOK, usersOrEmpty(u))
		return
	}

	first, _ := strconv.Atoi(c.Query("first"))
	max, _ := strconv.Atoi(c.Query("max"))
	users, err := h.app.identity.SearchUsers(ctx, identity.UserQuery{
		Search: c.Query("search"),
		First:  first,
		Max:    max,
	})
	if err != nil {
		abortWithFault(c, err)
		return
	}
	if users == nil {
		users = []identity.User{}
	}
	c.JSON(http.StatusOK, users)
}

func usersOrEmpty(u *identity.User) []identity.User {
	if u == nil {
		return []identity.User{}
	}
	return []identity.User{*u}
}

type createUserBody struct {
	Username      string `json:"username" binding:"required"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Enabled       *bool  `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
	Password      string `json:"password"`
	Temporary     bool   `json:"temporary"`
}

func (h *handlers) createUser(c *gin.Context) {
	var body createUserBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}

	id, err := h.app.identity.CreateUser(c.Request.Context(), identity.CreateUserRequest{
		Username:      body.Username,
		Email:         body.Email,
		FirstName:     body.FirstName,
		LastName:      body.LastName,
		Enabled:       enabled,
		EmailVerified: body.EmailVerified,
		Password:      body.Password,
		Temporary:     body.Temporary,
	})
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *handlers) getUser(c *gin.Context) {
	u, err := h.app.identity.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithFault(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handlers) updateUser(c *gin.Context) {
	var req identity.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	if err := h.app.identity.UpdateUser(c.Request.Context(), c.Param("id"), req); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) deleteUser(c *gin.Context) {
	if err := h.app.identity.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) resetPassword(c *gin.Context) {
	var req struct {
		Password  string `json:"password" binding:"required"`
		Temporary bool   `json:"temporary"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	if err := h.app.identity.ResetPassword(c.Request.Context(), c.Param("id"), req.Password, req.Temporary); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) clearUserSessions(c *gin.Context) {
	if err := h.app.identity.ClearUserSessions(c.Request.Context(), c.Param("id")); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) getUserRoles(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		roles []identity.Role
		err   error
	)
	if c.Query("client") != "" {
		roles, err = h.app.identity.GetClientRolesForUser(ctx, id)
	} else {
		roles, err = h.app.identity.GetUserRoles(ctx, id)
	}
	if err != nil {
		abortWithFault(c, err)
		return
	}
	if roles == nil {
		roles = []identity.Role{}
	}
	c.JSON(http.StatusOK, roles)
}

func (h *handlers) assignRole(c *gin.Context) {
	ctx := c.Request.Context()
	id, name := c.Param("id"), c.Param("name")

	var err error
	if c.Query("client") != "" {
		err = h.app.identity.AssignClientRole(ctx, id, name)
	} else {
		err = h.app.identity.AssignRealmRole(ctx, id, name)
	}
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) removeRole(c *gin.Context) {
	ctx := c.Request.Context()
	id, name := c.Param("id"), c.Param("name")

	var err error
	if c.Query("client") != "" {
		err = h.app.identity.RemoveClientRole(ctx, id, name)
	} else {
		err = h.app.identity.RemoveRealmRole(ctx, id, name)
	}
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listRealmRoles(c *gin.Context) {
	roles, err := h.app.identity.GetRealmRoles(c.Request.Context())
	if err != nil {
		abortWithFault(c, err)
		return
	}
	if roles == nil {
		roles = []identity.Role{}
	}
	c.JSON(http.StatusOK, roles)
}

func (h *handlers) createRealmRole(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if err := h.app.identity.CreateRealmRole(c.Request.Context(), req.Name, req.Description); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *handlers) deleteRealmRole(c *gin.Context) {
	if err := h.app.identity.DeleteRealmRole(c.Request.Context(), c.Param("name")); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
