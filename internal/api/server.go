// Package api serves the dashboard HTTP interface.
//
// Authentication happens upstream: the auth proxy sets X-User-ID and
// X-User-Name on every request and the handlers trust them.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/dispatch"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/llm"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/notify"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/observability"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/ratelimit"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/store"
)

// Header names set by the auth proxy.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// Deps are the collaborators the handlers use. Store, Documents and
// Dispatcher are required.
type Deps struct {
	Store      store.Store
	Documents  store.Documents
	Dispatcher *dispatch.Dispatcher

	// Limits is consulted by /chat and /chat-ratelimit. Nil disables limits.
	Limits *ratelimit.Checker

	// Chat streams /chat completions. Nil answers 503.
	Chat llm.Client

	// Bus feeds /events. Nil answers 503.
	Bus *notify.Bus

	Logger  *slog.Logger
	Metrics observability.MetricsRecorder
}

// Server holds the handler state.
type Server struct {
	deps Deps

	// editMu serializes load-modify-save cycles of the editor routes.
	editMu sync.Mutex
}

// NewRouter builds the gin router with routes and middleware.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NoopMetrics{}
	}
	s := &Server{deps: deps}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(deps.Logger))
	r.Use(cors())

	r.GET("/health", s.handleHealth)

	r.GET("/flows", s.handleListFlows)
	r.POST("/flows", s.handleCreateFlow)
	r.GET("/flows/:id", s.handleGetFlow)
	r.PUT("/flows/:id", s.handleUpdateFlow)
	r.DELETE("/flows/:id", s.handleDeleteFlow)

	r.GET("/flows/:id/catalog", s.handleCatalog)
	r.POST("/flows/:id/nodes", s.handleAddNode)
	r.PATCH("/flows/:id/nodes/:nodeId", s.handleUpdateNode)
	r.DELETE("/flows/:id/nodes/:nodeId", s.handleRemoveNode)
	r.POST("/flows/:id/edges", s.handleConnect)

	r.POST("/flows/:id/run", s.handleRun)
	r.POST("/flows/:id/hangup", s.handleHangup)
	r.POST("/voice/events", s.handleVoiceEvent)

	r.POST("/chat", s.handleChat)
	r.POST("/chat-ratelimit", s.handleChatRateLimit)

	r.GET("/documents", s.handleListDocuments)
	r.POST("/documents", s.handleUploadDocument)

	r.GET("/events", s.handleEvents)

	return r
}

// userFrom returns the user named by the auth proxy headers.
func userFrom(c *gin.Context) flowdeck.User {
	return flowdeck.User{
		ID:   c.GetHeader(HeaderUserID),
		Name: c.GetHeader(HeaderUserName),
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if p, ok := s.deps.Store.(pinger); ok {
		if err := p.Ping(c.Request.Context()); err != nil {
			s.deps.Logger.Warn("store ping failed", slog.String("error", err.Error()))
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{"status": status, "timestamp": time.Now().Unix()})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+HeaderUserID+", "+HeaderUserName)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
