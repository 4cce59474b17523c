// Package api exposes the aggregate of the current session over HTTP,
// together with health, readiness and metrics endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"notification-engine/internal/aggregator"
	"notification-engine/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Aggregate is the part of the aggregator served over HTTP.
type Aggregate interface {
	RefreshState(ctx context.Context, userID string) (aggregator.State, error)
	State() aggregator.State
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	Clear()
}

// Trigger queues a background pass.
type Trigger interface {
	Fire(userID string) bool
}

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

type Server struct {
	aggregate Aggregate
	trigger   Trigger
	checks    map[string]Check
	logger    logger.Logger
	router    *gin.Engine
}

func NewServer(aggregate Aggregate, trigger Trigger, checks map[string]Check, log logger.Logger) *Server {
	server := &Server{
		aggregate: aggregate,
		trigger:   trigger,
		checks:    checks,
		logger:    logger.Component(log, "api"),
	}
	server.setupRouter()
	return server
}

func (server *Server) Handler() http.Handler {
	return server.router
}

func (server *Server) setupRouter() {
	router := gin.New()
	router.Use(gin.Recovery(), server.requestLogger())

	router.GET("/health", server.health)
	router.GET("/ready", server.ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/users/:userId/refresh", server.refresh)
		v1.POST("/users/:userId/trigger", server.fire)

		notifications := v1.Group("/notifications")
		notifications.GET("", server.listNotifications)
		notifications.POST("/read-all", server.markAllRead)
		notifications.POST("/:id/read", server.markRead)
		notifications.DELETE("/:id", server.deleteNotification)
		notifications.DELETE("", server.clear)
	}

	server.router = router
}

func (server *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		server.logger.Debug("request served", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

func (server *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (server *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range server.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (server *Server) refresh(c *gin.Context) {
	st, err := server.aggregate.RefreshState(c.Request.Context(), c.Param("userId"))
	if err != nil {
		server.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(st, st.Notifications))
}

func (server *Server) fire(c *gin.Context) {
	if !server.trigger.Fire(c.Param("userId")) {
		c.JSON(http.StatusTooManyRequests, errorResponse(errors.New("refresh already pending")))
		return
	}
	c.Status(http.StatusAccepted)
}

type listNotificationsRequest struct {
	Filter string `form:"filter"`
}

func (server *Server) listNotifications(c *gin.Context) {
	var req listNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}
	if req.Filter == "" {
		req.Filter = aggregator.FilterAll
	}

	st := server.aggregate.State()
	c.JSON(http.StatusOK, newListResponse(st, aggregator.FilterAndSort(st.Notifications, req.Filter)))
}

func (server *Server) markRead(c *gin.Context) {
	server.mutate(c, server.aggregate.MarkRead(c.Request.Context(), c.Param("id")))
}

func (server *Server) markAllRead(c *gin.Context) {
	server.mutate(c, server.aggregate.MarkAllRead(c.Request.Context()))
}

func (server *Server) deleteNotification(c *gin.Context) {
	server.mutate(c, server.aggregate.Delete(c.Request.Context(), c.Param("id")))
}

func (server *Server) clear(c *gin.Context) {
	server.aggregate.Clear()
	c.Status(http.StatusNoContent)
}

// mutate answers a mutation. A marker that could not be persisted does not
// undo the local change, so it is reported alongside a successful status.
func (server *Server) mutate(c *gin.Context, err error) {
	switch {
	case err == nil:
	case errors.Is(err, aggregator.ErrNotFound), errors.Is(err, aggregator.ErrNoIdentity):
		server.writeError(c, err)
		return
	default:
		server.logger.Warn("mutation applied without persisted marker", map[string]interface{}{
			"error": err,
		})
		st := server.aggregate.State()
		resp := newListResponse(st, st.Notifications)
		resp.Warning = err.Error()
		c.JSON(http.StatusOK, resp)
		return
	}

	st := server.aggregate.State()
	c.JSON(http.StatusOK, newListResponse(st, st.Notifications))
}

func (server *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, aggregator.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, aggregator.ErrNoIdentity):
		status = http.StatusBadRequest
	case errors.Is(err, aggregator.ErrPassDiscarded):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, errorResponse(err))
}
