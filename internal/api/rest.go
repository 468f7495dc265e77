// Package api provides the status API for Cachearr: run history, the
// current report, a manual run trigger, metrics and a live WebSocket feed.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mescon/Cachearr/internal/config"
	"github.com/mescon/Cachearr/internal/domain"
	"github.com/mescon/Cachearr/internal/eventbus"
	"github.com/mescon/Cachearr/internal/logger"
	"github.com/mescon/Cachearr/internal/metrics"
)

// RunStore is the read side of the run history.
type RunStore interface {
	ListRuns(limit, offset int) ([]domain.RunSummary, error)
	CountRuns() (int, error)
	GetRun(id string) (domain.RunSummary, error)
	GetRunRecords(runID string) ([]domain.ProcessedRecord, error)
	Stats() (map[string]int64, error)
}

// PipelineStatus reports whether a run is executing.
type PipelineStatus interface {
	Running() bool
}

// Scheduler triggers runs and reports the next scheduled one.
type Scheduler interface {
	RunNow()
	NextRun() time.Time
}

type RESTServer struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	store      RunStore
	pipeline   PipelineStatus
	scheduler  Scheduler
	metrics    *metrics.MetricsService
	hub        *WebSocketHub
	runLimiter *RateLimiter
	startTime  time.Time
}

// ServerDeps contains all dependencies required for the REST server
type ServerDeps struct {
	Config    *config.Config
	Store     RunStore
	EventBus  eventbus.Publisher
	Pipeline  PipelineStatus
	Scheduler Scheduler
	Metrics   *metrics.MetricsService
}

func NewRESTServer(deps ServerDeps) *RESTServer {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Request ID middleware for correlation/tracing
	r.Use(func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set("request_id", reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	})

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		reqID := c.GetString("request_id")
		logger.Errorf("[PANIC RECOVERY] request_id=%s path=%s method=%s error=%v",
			reqID, c.Request.URL.Path, c.Request.Method, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      ErrMsgInternalError,
			"request_id": reqID,
		})
	}))

	s := &RESTServer{
		router:    r,
		cfg:       deps.Config,
		store:     deps.Store,
		pipeline:  deps.Pipeline,
		scheduler: deps.Scheduler,
		metrics:   deps.Metrics,
		hub:       NewWebSocketHub(deps.EventBus),
		// burst of 3 manual triggers, then one per 10 minutes
		runLimiter: NewRateLimiter(1, 10*time.Minute, 3),
		startTime:  time.Now(),
	}

	s.setupRoutes()

	return s
}

func (s *RESTServer) setupRoutes() {
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api")
	api.GET("/health", s.handleHealth)

	protected := api.Group("")
	protected.Use(s.authMiddleware())
	{
		protected.GET("/runs", s.getRuns)
		protected.GET("/runs/:id", s.getRun)
		protected.POST("/runs", s.runLimiter.Middleware(), s.triggerRun)
		protected.GET("/report", s.getReport)
		protected.GET("/ws", s.hub.HandleConnection)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
	})
}

// Handler exposes the router, mainly for tests.
func (s *RESTServer) Handler() http.Handler {
	return s.router
}

func (s *RESTServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *RESTServer) Shutdown(ctx context.Context) error {
	s.hub.Close()
	s.runLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// authMiddleware enforces CACHEARR_API_KEY when one is configured. The key
// may come from X-API-Key, a Bearer token or the apikey query parameter
// (browsers cannot set headers on WebSocket upgrades).
func (s *RESTServer) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg == nil || s.cfg.APIKey == "" {
			c.Next()
			return
		}

		token := c.GetHeader("X-API-Key")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			token = c.Query("apikey")
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authentication token provided"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			return
		}

		c.Next()
	}
}
