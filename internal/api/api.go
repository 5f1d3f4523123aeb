// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api serves the journey, ledger, topic and directory services over
// HTTP. Every route under /api/v1 requires a bearer token; /healthz and
// /metrics are public.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/research-journey/internal/directory"
	"github.com/pdiddy/research-journey/internal/export"
	"github.com/pdiddy/research-journey/internal/journey"
	"github.com/pdiddy/research-journey/internal/ledger"
	"github.com/pdiddy/research-journey/internal/project"
	"github.com/pdiddy/research-journey/internal/session"
	"github.com/pdiddy/research-journey/internal/store"
	"github.com/pdiddy/research-journey/internal/tasks"
	"github.com/pdiddy/research-journey/internal/topic"
	"github.com/pdiddy/research-journey/pkg/types"
)

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the handlers' collaborators.
type Services struct {
	Store     Pinger
	Projects  *project.Registry
	Tasks     *tasks.Tracker
	Journey   *journey.Controller
	Ledger    *ledger.Ledger
	Topics    *topic.Flow
	Directory *directory.Directory
	Exporter  *export.Exporter
}

// Server holds the router dependencies.
type Server struct {
	svc      Services
	verifier *session.Verifier
	logger   *zap.Logger
}

var errBadRequest = errors.New("bad request")

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

// errorStatus maps sentinel errors to responses, first match wins.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{session.ErrNotAuthenticated, http.StatusUnauthorized, "unauthenticated"},
	{ledger.ErrInsufficientPoints, http.StatusPaymentRequired, "insufficient_points"},
	{store.ErrNotFound, http.StatusNotFound, "not_found"},
	{topic.ErrUnknownTopic, http.StatusNotFound, "unknown_topic"},
	{journey.ErrBusy, http.StatusConflict, "busy"},
	{journey.ErrPhaseMismatch, http.StatusConflict, "phase_mismatch"},
	{journey.ErrCompleted, http.StatusConflict, "completed"},
	{journey.ErrFinalPhase, http.StatusConflict, "final_phase"},
	{topic.ErrNothingStaged, http.StatusConflict, "nothing_staged"},
	{directory.ErrNotMember, http.StatusConflict, "not_member"},
	{store.ErrConflict, http.StatusConflict, "conflict"},
	{ledger.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{tasks.ErrInvalidStatus, http.StatusUnprocessableEntity, "invalid_status"},
	{tasks.ErrInvalidPriority, http.StatusUnprocessableEntity, "invalid_priority"},
	{topic.ErrInvalidAnswers, http.StatusUnprocessableEntity, "invalid_answers"},
	{directory.ErrUnknownPlatform, http.StatusUnprocessableEntity, "unknown_platform"},
	{store.ErrInvalidQuery, http.StatusUnprocessableEntity, "invalid_query"},
	{types.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input"},
	{errBadRequest, http.StatusBadRequest, "bad_request"},
}

func (s *Server) fail(c *gin.Context, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			c.AbortWithStatusJSON(m.status, errorBody{apiError{Code: m.code, Message: err.Error()}})
			return
		}
	}
	s.logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{apiError{Code: "internal", Message: "internal error"}})
}

// NewRouter builds the gin engine. metrics may be nil.
func NewRouter(svc Services, verifier *session.Verifier, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, verifier: verifier, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", s.health)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/api/v1", s.authenticate)
	v1.GET("/me", s.me)

	v1.GET("/projects", s.listProjects)
	v1.POST("/projects", s.createProject)
	v1.GET("/projects/:id", s.selectProject)
	v1.PATCH("/projects/:id", s.updateProject)
	v1.DELETE("/projects/:id", s.deleteProject)
	v1.POST("/projects/:id/collaborators", s.addCollaborator)
	v1.POST("/projects/:id/phases/:phase/complete", s.completePhase)
	v1.PUT("/projects/:id/progress", s.setProgress)
	v1.POST("/projects/:id/progress/refresh", s.refreshProgress)
	v1.POST("/projects/:id/complete", s.completeResearch)
	v1.GET("/projects/:id/export", s.exportProject)

	v1.GET("/projects/:id/tasks", s.listTasks)
	v1.POST("/projects/:id/tasks", s.addTask)
	v1.PATCH("/tasks/:taskID", s.updateTaskStatus)
	v1.DELETE("/tasks/:taskID", s.deleteTask)

	v1.GET("/topics", s.searchTopics)
	v1.POST("/topics/suggest", s.suggestTopics)
	v1.POST("/projects/:id/topic", s.selectTopic)
	v1.GET("/projects/:id/topic", s.stagedTopic)
	v1.DELETE("/projects/:id/topic", s.cancelTopic)
	v1.POST("/projects/:id/topic/confirm", s.confirmTopic)

	v1.GET("/points", s.points)
	v1.GET("/achievements", s.achievements)
	v1.GET("/rewards", s.listRewards)
	v1.POST("/rewards", s.createReward)
	v1.POST("/rewards/:rewardID/redeem", s.redeemReward)

	v1.GET("/communities", s.searchCommunities)
	v1.POST("/communities", s.createCommunity)
	v1.GET("/communities/joins", s.joins)
	v1.POST("/communities/:platform/:communityID/join", s.joinCommunity)
	v1.DELETE("/communities/custom/:communityID/membership", s.leaveCommunity)

	v1.GET("/resources", s.searchResources)
	v1.POST("/resources", s.createResource)
	v1.GET("/resources/saved", s.savedResources)
	v1.POST("/resources/:resourceID/save", s.saveResource)

	return router
}

// authenticate verifies the bearer token and attaches the user to the
// request context.
func (s *Server) authenticate(c *gin.Context) {
	token, ok := session.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		s.fail(c, session.ErrNotAuthenticated)
		return
	}
	user, err := s.verifier.Verify(token)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Request = c.Request.WithContext(session.WithUser(c.Request.Context(), user))
	c.Next()
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) health(c *gin.Context) {
	if s.svc.Store != nil {
		if err := s.svc.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
