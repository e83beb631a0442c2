package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aimerfeng/SkillStage/internal/config"
	apierrors "github.com/aimerfeng/SkillStage/internal/errors"
	"github.com/aimerfeng/SkillStage/internal/logging"
	"github.com/aimerfeng/SkillStage/internal/middleware"
	"github.com/aimerfeng/SkillStage/internal/monitoring"
	"github.com/aimerfeng/SkillStage/internal/profile"
	"github.com/aimerfeng/SkillStage/internal/ratelimit"
	"github.com/aimerfeng/SkillStage/internal/skill"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthCheck probes one backing service
type HealthCheck func(ctx context.Context) error

// Dependencies are the collaborators of the API server
type Dependencies struct {
	Skills   *skill.Service
	Profiles profile.Directory
	// Limiter may be nil, which disables rate limiting
	Limiter *ratelimit.Limiter
	Checks  map[string]HealthCheck
}

// APIServer represents the main API server
type APIServer struct {
	config           *config.Config
	router           *gin.Engine
	skills           *skill.Service
	profiles         profile.Directory
	limiter          *ratelimit.Limiter
	checks           map[string]HealthCheck
	jwtAuthenticator *middleware.JWTAuthenticator
	logger           zerolog.Logger
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, deps Dependencies) *APIServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	profiles := deps.Profiles
	if profiles == nil {
		profiles = profile.NewMemory()
	}

	srv := &APIServer{
		config:           cfg,
		router:           router,
		skills:           deps.Skills,
		profiles:         profiles,
		limiter:          deps.Limiter,
		checks:           deps.Checks,
		jwtAuthenticator: middleware.NewJWTAuthenticator(&cfg.JWT),
		logger:           logging.NewLogger("api"),
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.NoRoute(func(c *gin.Context) {
		middleware.RespondWithError(c, apierrors.ErrNotFoundError)
	})

	auth := s.jwtAuthenticator.JWTAuth()
	limit := s.limiter.Middleware()

	skills := s.router.Group("/api/skills")
	{
		// Public reads
		skills.GET("", s.handleListSkills)
		skills.GET("/:id", s.handleGetSkill)

		skills.GET("/my-requests", auth, s.handleMyRequests)

		// Mutations are authenticated and rate limited per identity
		skills.POST("", auth, limit, s.handleCreateSkill)
		skills.PUT("/:id", auth, limit, s.handleUpdateSkill)
		skills.DELETE("/:id", auth, limit, s.handleDeleteSkill)

		skills.PATCH("/:id/request", auth, limit, s.handleToggleRequest)
		skills.PATCH("/:id/withdraw", auth, limit, s.handleWithdrawRequest)
		skills.PATCH("/:id/request/:requestId/accept", auth, limit, s.handleAcceptRequest)
		skills.PATCH("/:id/request/:requestId/reject", auth, limit, s.handleRejectRequest)

		skills.POST("/:id/feedback", auth, limit, s.handleSubmitFeedback)
	}
}

// healthCheck reports the state of every configured backing service
func (s *APIServer) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", name).Msg("Health check failed")
			checks[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "healthy"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": s.config.Server.Name,
		"checks":  checks,
	})
}
