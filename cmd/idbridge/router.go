package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/idbridge/internal/faults"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// newRouter builds the gin HTTP surface.
func newRouter(app *application, logger observability.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestIDMiddleware(), loggingMiddleware(logger))

	h := &handlers{app: app, logger: logger}

	r.GET("/healthz", h.health)
	r.GET(app.config.Server.MetricsPath, gin.WrapH(
		promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	{
		v1.POST("/token", h.token)
		v1.POST("/token/refresh", h.refreshToken)
		v1.POST("/token/introspect", h.introspectToken)
		v1.POST("/logout", h.logout)
		v1.GET("/userinfo", h.userinfo)
		v1.GET("/check/role", h.checkRole)
		v1.GET("/check/permission", h.checkPermission)

		v1.GET("/users", h.listUsers)
		v1.POST("/users", h.createUser)
		v1.GET("/users/:id", h.getUser)
		v1.PUT("/users/:id", h.updateUser)
		v1.DELETE("/users/:id", h.deleteUser)
		v1.PUT("/users/:id/password", h.resetPassword)
		v1.POST("/users/:id/logout", h.clearUserSessions)
		v1.GET("/users/:id/roles", h.getUserRoles)
		v1.POST("/users/:id/roles/:name", h.assignRole)
		v1.DELETE("/users/:id/roles/:name", h.removeRole)

		v1.GET("/roles", h.listRealmRoles)
		v1.POST("/roles", h.createRealmRole)
		v1.DELETE("/roles/:name", h.deleteRealmRole)
	}

	return r
}

// requestIDMiddleware propagates or generates a request ID.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(
			observability.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// loggingMiddleware logs one line per request.
func loggingMiddleware(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.WithContext(c.Request.Context()).Debug("request handled",
			observability.String("method", c.Request.Method),
			observability.String("path", c.Request.URL.Path),
			observability.Int("status", c.Writer.Status()),
		)
	}
}

// httpStatus maps fault kinds to HTTP status codes.
func httpStatus(err error) int {
	switch faults.KindOf(err) {
	case faults.KindNotFound:
		return http.StatusNotFound
	case faults.KindUnauthenticated, faults.KindInvalidToken:
		return http.StatusUnauthorized
	case faults.KindInvalidArgument:
		return http.StatusBadRequest
	case faults.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithFault writes an error response for a service failure.
func abortWithFault(c *gin.Context, err error) {
	c.AbortWithStatusJSON(httpStatus(err), gin.H{"error": err.Error()})
}
